package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vjranagit/tsview/pkg/types"
)

// seriesDocument is one YAML (or JSON) document of an ingest file
type seriesDocument struct {
	Project string             `yaml:"project"`
	Series  []types.TimeSeries `yaml:"series"`
}

func newIngestCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Write series documents from a YAML or JSON file into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", file, err)
			}
			defer f.Close()

			docs, err := readSeriesDocuments(f)
			if err != nil {
				return err
			}

			env, err := setup()
			if err != nil {
				return err
			}
			defer env.close()

			for _, doc := range docs {
				if err := env.store.Write(cmd.Context(), doc.Project, doc.Series); err != nil {
					return fmt.Errorf("failed to write project %s: %w", doc.Project, err)
				}
				env.logger.Info("ingested series",
					zap.String("project", doc.Project),
					zap.Int("series", len(doc.Series)),
				)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d documents\n", len(docs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "series file (YAML or JSON, multiple YAML documents allowed)")
	cmd.MarkFlagRequired("file")

	return cmd
}

// readSeriesDocuments decodes every document of r
func readSeriesDocuments(r io.Reader) ([]seriesDocument, error) {
	decoder := yaml.NewDecoder(r)

	var docs []seriesDocument
	for {
		var doc seriesDocument
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode series document %d: %w", len(docs)+1, err)
		}
		if doc.Project == "" {
			return nil, fmt.Errorf("series document %d has no project", len(docs)+1)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

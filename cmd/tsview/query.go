package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vjranagit/tsview/pkg/metrics"
	"github.com/vjranagit/tsview/pkg/query"
	"github.com/vjranagit/tsview/pkg/types"
)

// queryFlags holds the flags of the query command
type queryFlags struct {
	project     string
	splitSource bool
	host        string
	measurement string
	metric      string
	start       int64
	end         int64
	combine     string
	smoothing   string
	granularity string
	threshold   int
	limit       int
}

func newQueryCommand() *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Compute chart-ready series and print the JSON response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, compute, err := flags.params()
			if err != nil {
				return err
			}

			env, err := setup()
			if err != nil {
				return err
			}
			defer env.close()

			limit := flags.limit
			if !cmd.Flags().Changed("limit") {
				limit = env.cfg.Query.MaxMetricLimit
			}
			if !cmd.Flags().Changed("threshold") {
				compute.Threshold = env.cfg.Query.DefaultThreshold
			}

			service := query.NewService(env.store, metrics.NewProgressSink(env.logger.Named("progress")), env.logger.Named("query"))
			resp, err := service.GetComputedTimeSeries(cmd.Context(), filter, compute, limit)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(resp); err != nil {
				return err
			}
			if resp.State != query.StateReady {
				return fmt.Errorf("query %s: %s", resp.State, resp.Message())
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.project, "project", "", "project name")
	f.BoolVar(&flags.splitSource, "split-source", false, "project is a split source")
	f.StringVar(&flags.host, "host", "", "host filter")
	f.StringVar(&flags.measurement, "measurement", "", "measurement filter")
	f.StringVar(&flags.metric, "metric", "", "metric name filter")
	f.Int64Var(&flags.start, "start", -1, "start of the time range in epoch ms (-1 = open)")
	f.Int64Var(&flags.end, "end", -1, "end of the time range in epoch ms (-1 = open)")
	f.StringVar(&flags.combine, "combine", types.CombineNone.String(), "combine mode")
	f.StringVar(&flags.smoothing, "smoothing", types.SmoothingNone.String(), "smoothing type")
	f.StringVar(&flags.granularity, "granularity", types.GranularityAuto.String(), "smoothing granularity")
	f.IntVar(&flags.threshold, "threshold", types.DefaultThreshold, "total point budget (0 = value-change filter only)")
	f.IntVar(&flags.limit, "limit", 0, "maximum number of series")
	cmd.MarkFlagRequired("project")

	return cmd
}

// params converts the flags into filter and compute parameters
func (q *queryFlags) params() (types.FilterParams, types.ComputeParams, error) {
	filter := types.NewFilterParams(types.Project{Name: q.project, SplitSource: q.splitSource})
	filter.Host = q.host
	filter.Measurement = q.measurement
	filter.MetricName = q.metric
	filter.Start = q.start
	filter.End = q.end

	compute := types.DefaultComputeParams()
	compute.Threshold = q.threshold

	var err error
	if compute.CombineMode, err = types.ParseCombineMode(q.combine); err != nil {
		return filter, compute, err
	}
	if compute.SmoothingType, err = types.ParseSmoothingType(q.smoothing); err != nil {
		return filter, compute, err
	}
	if compute.SmoothingGranularity, err = types.ParseSmoothingGranularity(q.granularity); err != nil {
		return filter, compute, err
	}
	return filter, compute, nil
}

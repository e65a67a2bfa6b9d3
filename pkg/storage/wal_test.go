package storage

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/tsview/pkg/types"
)

func replayAll(t *testing.T, dir string) ([]string, []types.TimeSeries) {
	t.Helper()
	var projects []string
	var series []types.TimeSeries
	_, err := ReplayJournal(dir, func(project string, s []types.TimeSeries) error {
		projects = append(projects, project)
		series = append(series, s...)
		return nil
	})
	require.NoError(t, err)
	return projects, series
}

func TestJournal(t *testing.T) {
	tmpDir := t.TempDir()

	journal, err := OpenJournal(tmpDir)
	require.NoError(t, err)

	series := []types.TimeSeries{{
		Host:       "web-1",
		MetricName: "usage",
		Points:     []types.Point{{Timestamp: 1000, Value: 42}},
	}}
	require.NoError(t, journal.Append("shop", series))
	require.NoError(t, journal.Flush())
	require.NoError(t, journal.Close(false))

	projects, replayed := replayAll(t, tmpDir)
	assert.Equal(t, []string{"shop"}, projects)
	assert.Equal(t, series, replayed)

	entries, err := os.ReadDir(filepath.Join(tmpDir, "journal"))
	require.NoError(t, err)
	assert.Empty(t, entries, "replayed journal files are removed")
}

func TestJournalNonFiniteValues(t *testing.T) {
	tmpDir := t.TempDir()

	journal, err := OpenJournal(tmpDir)
	require.NoError(t, err)

	series := []types.TimeSeries{{
		Host:       "web-1",
		MetricName: "usage",
		Points: []types.Point{
			{Timestamp: 1000, Value: math.NaN()},
			{Timestamp: 2000, Value: math.Inf(-1)},
		},
	}}
	require.NoError(t, journal.Append("shop", series))
	require.NoError(t, journal.Close(false))

	_, replayed := replayAll(t, tmpDir)
	require.Len(t, replayed, 1)
	require.Len(t, replayed[0].Points, 2)
	assert.Equal(t, "web-1", replayed[0].Host)
	assert.True(t, math.IsNaN(replayed[0].Points[0].Value))
	assert.True(t, math.IsInf(replayed[0].Points[1].Value, -1))
}

func TestJournalDiscardOnClose(t *testing.T) {
	tmpDir := t.TempDir()

	journal, err := OpenJournal(tmpDir)
	require.NoError(t, err)
	require.NoError(t, journal.Append("shop", nil))
	require.NoError(t, journal.Close(true))

	n, err := ReplayJournal(tmpDir, func(string, []types.TimeSeries) error { return nil })
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplayJournalTornLine(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "journal")
	require.NoError(t, os.MkdirAll(dir, 0755))

	complete, err := json.Marshal(newJournalEntry("shop", nil))
	require.NoError(t, err)
	content := string(complete) + "\n" + `{"project":"sh`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "journal-1.log"), []byte(content), 0644))

	n, err := ReplayJournal(tmpDir, func(string, []types.TimeSeries) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplayJournalCorruptPoints(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "journal")
	require.NoError(t, os.MkdirAll(dir, 0755))

	content := `{"project":"shop","series":[{"labels":{"metric_name":"usage"},"points":"/w=="}]}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "journal-1.log"), []byte(content), 0644))

	_, err := ReplayJournal(tmpDir, func(string, []types.TimeSeries) error { return nil })
	assert.ErrorIs(t, err, errCorruptBlock)
}

func TestReplayJournalMissingDir(t *testing.T) {
	n, err := ReplayJournal(t.TempDir(), func(string, []types.TimeSeries) error { return nil })
	require.NoError(t, err)
	assert.Zero(t, n)
}

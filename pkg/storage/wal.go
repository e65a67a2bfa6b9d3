package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vjranagit/tsview/pkg/types"
)

// Journal records ingested series before they are applied to the store.
// A journal left behind by a crash is replayed when the store opens.
type Journal struct {
	path       string
	filename   string
	file       *os.File
	writer     *bufio.Writer
	mu         sync.Mutex
	flushTimer *time.Timer
	closed     bool
}

// journalEntry represents a single journal line
type journalEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Project   string          `json:"project"`
	Series    []journalSeries `json:"series"`
}

// journalSeries holds the labels of a series and its points in block
// encoding. JSON numbers cannot carry NaN or infinities.
type journalSeries struct {
	Labels types.TimeSeries `json:"labels"`
	Points []byte           `json:"points"`
}

func newJournalEntry(project string, series []types.TimeSeries) journalEntry {
	entry := journalEntry{
		Timestamp: time.Now(),
		Project:   project,
		Series:    make([]journalSeries, len(series)),
	}
	for i := range series {
		entry.Series[i] = journalSeries{
			Labels: series[i].CopyMetadata(),
			Points: appendPoints(nil, series[i].Points),
		}
	}
	return entry
}

func (e *journalEntry) timeSeries() ([]types.TimeSeries, error) {
	series := make([]types.TimeSeries, len(e.Series))
	for i, js := range e.Series {
		points, err := decodePoints(js.Points)
		if err != nil {
			return nil, fmt.Errorf("failed to decode journaled points: %w", err)
		}
		series[i] = js.Labels
		series[i].Points = points
	}
	return series, nil
}

// OpenJournal creates a new journal file under dataPath/journal
func OpenJournal(dataPath string) (*Journal, error) {
	dir := filepath.Join(dataPath, "journal")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("journal-%d.log", time.Now().UnixNano()))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	j := &Journal{
		path:     dir,
		filename: filename,
		file:     file,
		writer:   bufio.NewWriter(file),
	}

	// Flush every second
	j.flushTimer = time.AfterFunc(time.Second, j.autoFlush)

	return j, nil
}

// Append records a write of series to a project
func (j *Journal) Append(project string, series []types.TimeSeries) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(newJournalEntry(project, series))
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	if _, err := j.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write to journal: %w", err)
	}
	if err := j.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// Flush flushes the journal to disk
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	if j.closed {
		return nil
	}
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	return nil
}

func (j *Journal) autoFlush() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}
	_ = j.flushLocked()
	j.flushTimer.Reset(time.Second)
}

// Close closes the journal. With discard set the file is removed, which
// is done once every journaled write reached the store.
func (j *Journal) Close(discard bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	if j.flushTimer != nil {
		j.flushTimer.Stop()
	}
	if err := j.flushLocked(); err != nil {
		return err
	}
	j.closed = true

	if err := j.file.Close(); err != nil {
		return err
	}
	if discard {
		return os.Remove(j.filename)
	}
	return nil
}

// ReplayJournal hands every journaled write under dataPath to handler in
// file order and removes the replayed files. Files listed in skip are left alone.
func ReplayJournal(dataPath string, handler func(project string, series []types.TimeSeries) error, skip ...string) (int, error) {
	dir := filepath.Join(dataPath, "journal")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read journal directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	replayed := 0
	for _, entry := range entries {
		filename := filepath.Join(dir, entry.Name())
		if entry.IsDir() || skipped[filename] {
			continue
		}

		n, err := replayJournalFile(filename, handler)
		if err != nil {
			return replayed, fmt.Errorf("failed to replay %s: %w", filename, err)
		}
		replayed += n

		if err := os.Remove(filename); err != nil {
			return replayed, fmt.Errorf("failed to remove replayed journal %s: %w", filename, err)
		}
	}

	return replayed, nil
}

func replayJournalFile(filename string, handler func(string, []types.TimeSeries) error) (int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	replayed := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		var entry journalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			// a torn final line after a crash ends the file
			break
		}
		series, err := entry.timeSeries()
		if err != nil {
			return replayed, err
		}
		if err := handler(entry.Project, series); err != nil {
			return replayed, fmt.Errorf("failed to replay entry: %w", err)
		}
		replayed++
	}

	return replayed, scanner.Err()
}

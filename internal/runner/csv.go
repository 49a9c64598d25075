package runner

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hiring-bias-lab/resume-eval/internal/survey"
)

// Row is one completed evaluation destined for a CSV file.
type Row struct {
	RunID             string
	File              string
	Provider          string
	Model             string
	Iteration         int
	Scores            []int
	ManipulationCheck string
	ThoughtProcess    string
	Timestamp         time.Time
}

// CSVSink appends evaluation rows to per-(file, model) CSV files grouped in
// per-provider subdirectories. Appends to the same file are serialized so
// concurrent workers never interleave partial rows.
type CSVSink struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCSVSink creates a sink rooted at the given output directory.
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

// Append writes the row to its CSV file, creating the file with a header row
// when it does not exist yet.
func (s *CSVSink) Append(row Row) error {
	if len(row.Scores) != survey.NumQuestions {
		return fmt.Errorf("row has %d scores, expected %d", len(row.Scores), survey.NumQuestions)
	}

	path := s.pathFor(row)

	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open csv file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}

	w := csv.NewWriter(file)

	if info.Size() == 0 {
		if err := w.Write(header()); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	if err := w.Write(record(row)); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}

	w.Flush()
	return w.Error()
}

func (s *CSVSink) pathFor(row Row) string {
	base := strings.TrimSuffix(filepath.Base(row.File), filepath.Ext(row.File))
	name := fmt.Sprintf("%s_%s.csv", base, sanitizeModel(row.Model))
	return filepath.Join(s.dir, "output_csvs_"+row.Provider, name)
}

func (s *CSVSink) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[path] = lock
	}
	return lock
}

// sanitizeModel keeps model identifiers filesystem-friendly.
func sanitizeModel(model string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', ':', ' ':
			return '-'
		default:
			return r
		}
	}, model)
}

func header() []string {
	columns := []string{"run_id", "file", "provider", "model", "iteration"}
	for i := 1; i <= survey.NumQuestions; i++ {
		columns = append(columns, fmt.Sprintf("q%d", i))
	}
	return append(columns, "manipulation_check", "thought_process", "timestamp")
}

func record(row Row) []string {
	fields := []string{
		row.RunID,
		filepath.Base(row.File),
		row.Provider,
		row.Model,
		strconv.Itoa(row.Iteration),
	}
	for _, score := range row.Scores {
		fields = append(fields, strconv.Itoa(score))
	}
	return append(fields,
		row.ManipulationCheck,
		row.ThoughtProcess,
		row.Timestamp.UTC().Format(time.RFC3339),
	)
}

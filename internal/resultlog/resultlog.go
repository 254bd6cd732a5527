// Package resultlog records per-recipient send outcomes in a durable
// append-only CSV file and computes aggregate statistics over it. One writer
// appends once per item in dispatch order, so log order matches send order,
// and a partial run's log is a valid prefix of a complete run's log.
package resultlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status values written to the log.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

var columns = []string{"timestamp", "email", "status", "message_id", "error"}

// Record is one row of the result log.
type Record struct {
	Timestamp time.Time
	Email     string
	Status    string
	MessageID string
	Error     string
}

// Stats are aggregate counts over a log.
type Stats struct {
	Total       int
	Successful  int
	Failed      int
	SuccessRate float64
}

// Logger appends send outcomes to a CSV file. Creating a Logger against an
// existing file never writes a second header row.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger opens (or creates) the result log at path. The header row is
// written only when the file is new or empty.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open result log %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat result log %s: %w", path, err)
	}
	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(columns); err != nil {
			return nil, fmt.Errorf("write result log header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("write result log header: %w", err)
		}
	}

	return &Logger{path: path}, nil
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// Append writes one outcome row. A zero Timestamp is stamped with the
// current time. Fields containing commas, quotes, or newlines are quoted by
// the CSV encoder.
func (l *Logger) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open result log %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	row := []string{
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.Email,
		rec.Status,
		rec.MessageID,
		rec.Error,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

// ReadAll returns every record in the log, in insertion order.
func (l *Logger) ReadAll() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open result log %s: %w", l.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	// Header row.
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read result log header: %w", err)
	}

	var records []Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read result log: %w", err)
		}
		if len(row) < len(columns) {
			continue
		}
		ts, _ := time.Parse(time.RFC3339, row[0])
		records = append(records, Record{
			Timestamp: ts,
			Email:     row[1],
			Status:    row[2],
			MessageID: row[3],
			Error:     row[4],
		})
	}
	return records, nil
}

// Stats computes aggregate counts over the whole log.
func (l *Logger) Stats() (Stats, error) {
	records, err := l.ReadAll()
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(records), nil
}

// ComputeStats aggregates a record slice. The success rate of an empty log
// is 0, not NaN.
func ComputeStats(records []Record) Stats {
	s := Stats{Total: len(records)}
	for _, rec := range records {
		if rec.Status == StatusSent {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.Total) * 100
	}
	return s
}

// SummaryReport renders a human-readable report: totals, success rate,
// elapsed time between first and last record, and a frequency-sorted
// breakdown of failure messages.
func (l *Logger) SummaryReport() (string, error) {
	records, err := l.ReadAll()
	if err != nil {
		return "", err
	}
	return FormatSummary(records), nil
}

// FormatSummary builds the report text for a record slice.
func FormatSummary(records []Record) string {
	stats := ComputeStats(records)

	var b strings.Builder
	b.WriteString("Send Summary\n")
	b.WriteString("============\n")
	fmt.Fprintf(&b, "Total:        %d\n", stats.Total)
	fmt.Fprintf(&b, "Successful:   %d\n", stats.Successful)
	fmt.Fprintf(&b, "Failed:       %d\n", stats.Failed)
	fmt.Fprintf(&b, "Success rate: %.1f%%\n", stats.SuccessRate)

	if len(records) > 1 {
		elapsed := records[len(records)-1].Timestamp.Sub(records[0].Timestamp)
		fmt.Fprintf(&b, "Elapsed:      %s\n", FormatElapsed(elapsed))
	}

	type errCount struct {
		msg   string
		count int
	}
	var (
		order  []string
		counts = make(map[string]int)
	)
	for _, rec := range records {
		if rec.Status == StatusSent || rec.Error == "" {
			continue
		}
		if counts[rec.Error] == 0 {
			order = append(order, rec.Error)
		}
		counts[rec.Error]++
	}
	if len(order) > 0 {
		errs := make([]errCount, 0, len(order))
		for _, msg := range order {
			errs = append(errs, errCount{msg: msg, count: counts[msg]})
		}
		// Most frequent first; ties keep encounter order.
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].count > errs[j].count })

		b.WriteString("\nFailure breakdown:\n")
		for _, ec := range errs {
			fmt.Fprintf(&b, "  %dx %s\n", ec.count, ec.msg)
		}
	}

	return b.String()
}

// FormatElapsed renders a duration as "Hh Mm Ss", dropping leading zero
// units: 3723s is "1h 2m 3s", 123s is "2m 3s", 3s is "3s".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

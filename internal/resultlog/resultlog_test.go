package resultlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := NewLogger(filepath.Join(t.TempDir(), "results.csv"))
	require.NoError(t, err)
	return l
}

func TestNewLoggerWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	_, err := NewLogger(path)
	require.NoError(t, err)
	_, err = NewLogger(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "timestamp,email,status,message_id,error"))
}

func TestAppendAndReadAll(t *testing.T) {
	l := newTestLogger(t)

	require.NoError(t, l.Append(Record{Email: "a@example.com", Status: StatusSent, MessageID: "msg-1"}))
	require.NoError(t, l.Append(Record{Email: "b@example.com", Status: StatusFailed, Error: "mailbox full"}))

	records, err := l.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "a@example.com", records[0].Email)
	assert.Equal(t, StatusSent, records[0].Status)
	assert.Equal(t, "msg-1", records[0].MessageID)
	assert.False(t, records[0].Timestamp.IsZero())

	assert.Equal(t, StatusFailed, records[1].Status)
	assert.Equal(t, "mailbox full", records[1].Error)
}

func TestAppendQuotesSpecialCharacters(t *testing.T) {
	l := newTestLogger(t)

	errMsg := `provider said: "550, rejected"` + "\nsecond line"
	require.NoError(t, l.Append(Record{Email: "a@example.com", Status: StatusFailed, Error: errMsg}))

	records, err := l.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, errMsg, records[0].Error)
}

func TestAppendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	l1, err := NewLogger(path)
	require.NoError(t, err)
	require.NoError(t, l1.Append(Record{Email: "a@example.com", Status: StatusSent}))

	// A second run appends to the same file without duplicating the header.
	l2, err := NewLogger(path)
	require.NoError(t, err)
	require.NoError(t, l2.Append(Record{Email: "b@example.com", Status: StatusSent}))

	records, err := l2.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))

	all := make([]Record, 5)
	for i := range all {
		all[i] = Record{Status: StatusSent}
	}
	s := ComputeStats(all)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 5, s.Successful)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, 100.0, s.SuccessRate)

	mixed := append(all[:3:3], Record{Status: StatusFailed}, Record{Status: StatusFailed})
	s = ComputeStats(mixed)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Successful)
	assert.Equal(t, 2, s.Failed)
	assert.InDelta(t, 60.0, s.SuccessRate, 0.001)
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{3*time.Second + 200*time.Millisecond, "3s"},
		{2*time.Minute + 3*time.Second, "2m 3s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3s"},
		{time.Hour, "1h 0m 0s"},
		{0, "0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatElapsed(tt.d))
	}
}

func TestFormatSummary(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{Timestamp: base, Email: "a@example.com", Status: StatusSent},
		{Timestamp: base.Add(30 * time.Second), Email: "b@example.com", Status: StatusFailed, Error: "timeout"},
		{Timestamp: base.Add(60 * time.Second), Email: "c@example.com", Status: StatusFailed, Error: "rejected"},
		{Timestamp: base.Add(90 * time.Second), Email: "d@example.com", Status: StatusFailed, Error: "timeout"},
	}

	report := FormatSummary(records)
	assert.Contains(t, report, "Total:        4")
	assert.Contains(t, report, "Successful:   1")
	assert.Contains(t, report, "Failed:       3")
	assert.Contains(t, report, "25.0%")
	assert.Contains(t, report, "1m 30s")

	// Most frequent error first.
	timeoutIdx := strings.Index(report, "2x timeout")
	rejectedIdx := strings.Index(report, "1x rejected")
	require.GreaterOrEqual(t, timeoutIdx, 0)
	require.GreaterOrEqual(t, rejectedIdx, 0)
	assert.Less(t, timeoutIdx, rejectedIdx)
}

func TestSummaryReportEmptyLog(t *testing.T) {
	l := newTestLogger(t)

	report, err := l.SummaryReport()
	require.NoError(t, err)
	assert.Contains(t, report, "Total:        0")
	assert.Contains(t, report, "0.0%")
}

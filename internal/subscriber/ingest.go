package subscriber

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/optin-mailer/internal/emailaddr"
)

// ErrNoEmailColumn is returned when the header row has no recognizable
// email column. This is a structural failure: nothing is ingested.
var ErrNoEmailColumn = errors.New("subscriber file has no email column")

// SkipReasonInvalidEmail is recorded for rows whose address fails validation.
const SkipReasonInvalidEmail = "Invalid email format"

// SkippedRow describes one excluded input row. RowNumber is 1-based over
// data rows (the header row is not counted).
type SkippedRow struct {
	RowNumber int
	Email     string
	Reason    string
}

// columnAliases maps lowercase header names to their canonical field name.
// Different export formats use different spellings for the same thing.
var columnAliases = map[string]string{
	"email":         "email",
	"email_address": "email",
	"emailaddress":  "email",
	"e-mail":        "email",

	"first_name": "first_name",
	"firstname":  "first_name",
	"first name": "first_name",
	"fname":      "first_name",

	"last_name": "last_name",
	"lastname":  "last_name",
	"last name": "last_name",
	"lname":     "last_name",
}

// camelForms gives the camelCase twin of each canonical snake_case field.
// Values are stored under both names so templates written against either
// header convention keep working without edits.
var camelForms = map[string]string{
	"first_name": "firstName",
	"last_name":  "lastName",
}

// IngestCSV reads a comma-separated subscriber list. The first row is the
// header and must contain an email column (matched case-insensitively,
// common aliases accepted). Rows with an invalid email are excluded and
// reported in the skip list; they never abort the run. A missing email
// column does abort: that is a structural error, not a bad row.
func IngestCSV(r io.Reader) ([]Subscriber, []SkippedRow, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, ErrNoEmailColumn
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	fields := make([]string, len(header))
	emailIdx := -1
	for i, h := range header {
		name := strings.Trim(strings.TrimSpace(h), "\"'")
		normalized := strings.ToLower(name)
		if canonical, ok := columnAliases[normalized]; ok {
			fields[i] = canonical
			if canonical == "email" && emailIdx < 0 {
				emailIdx = i
			}
		} else {
			fields[i] = name
		}
	}
	if emailIdx < 0 {
		return nil, nil, ErrNoEmailColumn
	}

	var (
		subs    []Subscriber
		skipped []SkippedRow
		rowNum  int
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			skipped = append(skipped, SkippedRow{RowNumber: rowNum, Reason: "Unparseable row"})
			continue
		}

		sub := make(Subscriber, len(fields)+2)
		for i, val := range row {
			if i >= len(fields) || fields[i] == "" {
				continue
			}
			val = strings.TrimSpace(val)
			name := fields[i]
			sub[name] = val
			if camel, ok := camelForms[name]; ok {
				sub[camel] = val
			}
		}

		email := sub.Email()
		if !emailaddr.Valid(email) {
			skipped = append(skipped, SkippedRow{RowNumber: rowNum, Email: email, Reason: SkipReasonInvalidEmail})
			continue
		}
		subs = append(subs, sub)
	}

	return subs, skipped, nil
}

// stripBOM drops a UTF-8 byte order mark if the stream starts with one.
// Spreadsheet exports frequently include it and it would otherwise corrupt
// the first header name.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err == nil && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		br.Discard(3)
	}
	return br
}

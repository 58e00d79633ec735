// Package urllist reads URL lists and writes check results.
//
// Input is either a CSV file with a header row, where one named column holds
// the URLs, or plain text with one URL per line. Output keeps the input
// columns and appends Status_Code and Message, or renders a JSON report.
package urllist

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/urlcheck/pkg/checker"
	"github.com/Sternrassler/urlcheck/pkg/session"
)

// Output column names appended to CSV results.
const (
	ColumnStatusCode = "Status_Code"
	ColumnMessage    = "Message"
)

// maxLineLength bounds one line of line input.
const maxLineLength = 1 << 20

// ErrColumnNotFound is returned when the requested URL column is missing from the header.
var ErrColumnNotFound = errors.New("url column not found")

// List is a parsed input file.
type List struct {
	// Header is nil for line input.
	Header []string
	Rows   [][]string

	// Column is the index of the URL column within each row.
	Column int
}

// URLs returns the URL cell of every row, in order.
func (l *List) URLs() []string {
	urls := make([]string, len(l.Rows))
	for i, row := range l.Rows {
		if l.Column < len(row) {
			urls[i] = row[l.Column]
		}
	}
	return urls
}

// IsCSV reports whether path names a CSV file.
func IsCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

// ReadCSV parses CSV input with a header row. column names the URL column;
// when empty, the first column is used.
func ReadCSV(r io.Reader, column string) (*List, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read csv header: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	idx := 0
	if column != "" {
		idx = -1
		for i, name := range header {
			if strings.TrimSpace(name) == column {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q (have %s)", ErrColumnNotFound, column, strings.Join(header, ", "))
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	return &List{Header: header, Rows: rows, Column: idx}, nil
}

// ReadLines parses one URL per line. Blank lines are skipped. Lines may be
// up to 1 MiB long.
func ReadLines(r io.Reader) (*List, error) {
	var rows [][]string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, []string{line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return &List{Rows: rows}, nil
}

// WriteCSV writes the input rows with Status_Code and Message appended.
// results must be in input order, one per row.
func WriteCSV(w io.Writer, list *List, results []checker.Result) error {
	if len(results) != len(list.Rows) {
		return fmt.Errorf("write csv: %d results for %d rows", len(results), len(list.Rows))
	}

	cw := csv.NewWriter(w)
	header := list.Header
	if header == nil {
		header = []string{"URL"}
	}
	if err := cw.Write(append(cloneRow(header), ColumnStatusCode, ColumnMessage)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i, row := range list.Rows {
		res := results[i]
		if err := cw.Write(append(cloneRow(row), res.Code(), res.Message)); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Summary is the JSON rendering of a session report.
type Summary struct {
	SessionID string    `json:"session_id"`
	Holder    string    `json:"user"`
	StartedAt time.Time `json:"started_at"`
	Minutes   float64   `json:"minutes"`

	Total    int `json:"total"`
	OK       int `json:"ok"`
	Broken   int `json:"broken"`
	Switched int `json:"switched"`

	Results []ResultRow `json:"results"`
}

// ResultRow is one result in JSON output.
type ResultRow struct {
	checker.Result
	Code   string `json:"code"`
	Broken bool   `json:"broken"`
}

// WriteJSON renders report as indented JSON.
func WriteJSON(w io.Writer, report *session.Report) error {
	sum := Summary{
		SessionID: report.SessionID,
		Holder:    report.Holder,
		StartedAt: report.StartedAt,
		Minutes:   report.Duration.Minutes(),
		Total:     len(report.Results),
		OK:        report.OK,
		Broken:    report.Broken,
		Switched:  report.Switched,
		Results:   make([]ResultRow, len(report.Results)),
	}
	for i, res := range report.Results {
		sum.Results[i] = ResultRow{Result: res, Code: res.Code(), Broken: res.Broken()}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func cloneRow(row []string) []string {
	return append(make([]string, 0, len(row)+2), row...)
}

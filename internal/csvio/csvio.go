// Package csvio maps questions, answers and results to and from the CSV
// layout used by the organizations' spreadsheets. Column names and their
// meaning are a compatibility surface and must not change.
package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// bom is written before every CSV export so spreadsheet tools detect UTF-8.
const bom = "\ufeff"

// explanationPlaceholder is written in choice columns that have no
// explanation; it is read back as empty.
const explanationPlaceholder = "정답"

// Warning describes a problem in one row that did not abort the import.
type Warning struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Column == "" {
		return fmt.Sprintf("row %d: %s", w.Row, w.Message)
	}
	return fmt.Sprintf("row %d, column %s: %s", w.Row, w.Column, w.Message)
}

// readAll parses CSV after dropping a leading byte-order mark.
func readAll(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && bytes.Equal(head, []byte(bom)) {
		if _, err := br.Discard(len(bom)); err != nil {
			return nil, err
		}
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	return records, nil
}

// writeAll writes a BOM followed by the records.
func writeAll(w io.Writer, records [][]string) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write CSV: %w", err)
	}
	return nil
}

// headerKey canonicalizes a header cell for alias lookup.
func headerKey(s string) string {
	s = strings.TrimPrefix(s, bom)
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// columns maps canonical column names to their index in a header row.
type columns map[string]int

// mapHeader resolves header cells through aliases. The first occurrence
// of a column wins.
func mapHeader(header []string, aliases map[string]string) columns {
	cols := make(columns)
	for i, h := range header {
		name, ok := aliases[headerKey(h)]
		if !ok {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

// get returns the cell for column name, or "" when absent.
func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

package frame

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var missing = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "NaN": {}, "nan": {}, "null": {}, "NULL": {}, "None": {}, "<NA>": {},
}

// ParseCell infers the type of a textual cell.
func ParseCell(s string) any {
	s = strings.TrimSpace(s)
	if _, ok := missing[s]; ok {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
		return f
	}
	switch s {
	case "true", "True", "TRUE":
		return true
	case "false", "False", "FALSE":
		return false
	}
	return s
}

// FormatCell renders a cell the way it is written back to CSV. nil is empty.
func FormatCell(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(n) {
			return ""
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(n, 10)
	case bool:
		if n {
			return "True"
		}
		return "False"
	case string:
		return n
	default:
		return fmt.Sprint(n)
	}
}

// ReadCSV reads a header row followed by data rows. Short rows are padded
// with nil, long rows are an error.
func ReadCSV(r io.Reader) (*Table, error) {
	return readDelimited(r, ',')
}

func ParseCSV(s string) (*Table, error) {
	return ReadCSV(strings.NewReader(s))
}

func ReadTSV(r io.Reader) (*Table, error) {
	return readDelimited(r, '\t')
}

func readDelimited(r io.Reader, comma rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	return fromText(records)
}

// ParseWhitespace reads a table whose fields are separated by runs of
// blanks, as printed by analysts inside text blocks. Lines before the first
// one with at least two fields are skipped; rows with a different width
// than the header are dropped.
func ParseWhitespace(s string) (*Table, error) {
	var records [][]string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(records) == 0 && len(fields) < 2 {
			continue
		}
		if len(records) > 0 && len(fields) != len(records[0]) {
			continue
		}
		records = append(records, fields)
	}
	return fromText(records)
}

func fromText(records [][]string) (*Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrEmptyInput
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		header[i] = h
	}
	rows := make([][]any, 0, len(records)-1)
	for n, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) > len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", n+2, len(header), len(rec))
		}
		row := make([]any, len(header))
		for i, cell := range rec {
			row[i] = ParseCell(cell)
		}
		rows = append(rows, row)
	}
	return New(header, rows)
}

// FromRecords decodes a JSON array of objects keeping key order.
func FromRecords(data []byte) (*Table, error) {
	v, err := decodeOrdered(data)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, ErrNotRecords
	}
	keys := make([][]string, len(arr))
	records := make([]map[string]any, len(arr))
	for i, item := range arr {
		obj, ok := item.(*object)
		if !ok {
			return nil, ErrNotRecords
		}
		keys[i] = obj.keys
		records[i] = obj.values
	}
	if len(arr) == 0 {
		return &Table{}, nil
	}
	return FromMaps(keys, records)
}

// FromColumnsJSON decodes a JSON object mapping column names to arrays.
func FromColumnsJSON(data []byte) (*Table, error) {
	v, err := decodeOrdered(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*object)
	if !ok {
		return nil, ErrNotColumns
	}
	cols := make([][]any, len(obj.keys))
	for i, k := range obj.keys {
		arr, ok := obj.values[k].([]any)
		if !ok {
			return nil, errors.Wrapf(ErrNotColumns, "column %q", k)
		}
		cols[i] = arr
	}
	return FromColumns(obj.keys, cols)
}

type object struct {
	keys   []string
	values map[string]any
}

func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, errors.Wrap(err, "decode json")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode json: trailing data")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &object{values: map[string]any{}}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.values[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.values[key] = val
			}
			_, err := dec.Token()
			return obj, err
		case '[':
			arr := make([]any, 0)
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			_, err := dec.Token()
			return arr, err
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		return f, err
	default:
		return t, nil
	}
}

// ToCSV writes the table with a header row.
func (t *Table) ToCSV() string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(t.columns)
	for _, r := range t.rows {
		rec := make([]string, len(r))
		for i, v := range r {
			rec[i] = FormatCell(v)
		}
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.String()
}

// Records returns the rows as column-keyed maps.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.rows))
	for i, r := range t.rows {
		m := make(map[string]any, len(t.columns))
		for j, c := range t.columns {
			m[c] = r[j]
		}
		out[i] = m
	}
	return out
}

const maxPrintRows = 60

// String prints the table with an index column and right-aligned cells.
// Long tables are cut in the middle.
func (t *Table) String() string {
	if len(t.columns) == 0 {
		return "Empty table"
	}
	if len(t.rows) == 0 {
		return fmt.Sprintf("Empty table\nColumns: [%s]\nIndex: []", strings.Join(t.columns, ", "))
	}
	idx := make([]int, 0, len(t.rows))
	elided := false
	if len(t.rows) > maxPrintRows {
		for i := 0; i < maxPrintRows/2; i++ {
			idx = append(idx, i)
		}
		for i := len(t.rows) - maxPrintRows/2; i < len(t.rows); i++ {
			idx = append(idx, i)
		}
		elided = true
	} else {
		for i := range t.rows {
			idx = append(idx, i)
		}
	}
	grid := make([][]string, 0, len(idx)+1)
	grid = append(grid, append([]string{""}, t.columns...))
	for _, i := range idx {
		line := []string{strconv.Itoa(i)}
		for _, v := range t.rows[i] {
			line = append(line, displayCell(v))
		}
		grid = append(grid, line)
	}
	widths := make([]int, len(grid[0]))
	for _, line := range grid {
		for j, cell := range line {
			if n := utf8.RuneCountInString(cell); n > widths[j] {
				widths[j] = n
			}
		}
	}
	var sb strings.Builder
	for n, line := range grid {
		if elided && n == maxPrintRows/2+1 {
			sb.WriteString("..\n")
		}
		for j, cell := range line {
			if j > 0 {
				sb.WriteString("  ")
			}
			pad := widths[j] - utf8.RuneCountInString(cell)
			if j == 0 {
				sb.WriteString(cell + strings.Repeat(" ", pad))
			} else {
				sb.WriteString(strings.Repeat(" ", pad) + cell)
			}
		}
		sb.WriteByte('\n')
	}
	if elided {
		fmt.Fprintf(&sb, "\n[%d rows x %d columns]\n", len(t.rows), len(t.columns))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func displayCell(v any) string {
	switch n := v.(type) {
	case nil:
		return "NaN"
	case float64:
		if math.IsNaN(n) {
			return "NaN"
		}
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatFloat(n, 'f', 1, 64)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return FormatCell(v)
	}
}

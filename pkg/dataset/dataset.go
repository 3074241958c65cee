// Package dataset holds the tabular appointment data that questions are asked about.
//
// A Dataset is an ordered sequence of records with a fixed, ordered set of
// columns. Every accessor hands out copies so a Dataset can be shared by
// concurrent readers without coordination.
package dataset

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Type is the inferred type of a column.
type Type string

// Column types.
const (
	TypeNull     Type = "null"
	TypeBool     Type = "bool"
	TypeInt      Type = "int"
	TypeFloat    Type = "float"
	TypeString   Type = "string"
	TypeDate     Type = "date"
	TypeDateTime Type = "datetime"
	TypeAny      Type = "any"
)

// Column describes one column of a Dataset.
type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Record is a single row keyed by column name.
type Record map[string]any

// Dataset is an immutable table of records.
type Dataset struct {
	columns []Column
	rows    [][]any
	index   map[string]int
}

// New builds a Dataset from column names and positional rows.
// Rows shorter than the column list are padded with nulls; extra values are dropped.
func New(columns []string, rows [][]any) (*Dataset, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		index[name] = i
	}

	data := make([][]any, len(rows))
	for r, row := range rows {
		out := make([]any, len(columns))
		for c := range columns {
			if c < len(row) {
				out[c] = normalize(row[c])
			}
		}
		data[r] = out
	}

	cols := make([]Column, len(columns))
	for c, name := range columns {
		cols[c] = Column{Name: name, Type: inferColumn(data, c)}
	}

	return &Dataset{columns: cols, rows: data, index: index}, nil
}

// FromRecords builds a Dataset from keyed records, as returned by JSON APIs.
// Columns are ordered by first appearance; new keys within one record are
// sorted because map order carries no meaning. Empty keys are ignored.
func FromRecords(records []map[string]any) *Dataset {
	var columns []string
	seen := map[string]bool{"": true}
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			columns = append(columns, k)
		}
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for c, name := range columns {
			row[c] = rec[name]
		}
		rows[i] = row
	}

	ds, _ := New(columns, rows) // names are unique and non-empty by construction
	return ds
}

// Columns returns the column descriptors in order.
func (d *Dataset) Columns() []Column {
	out := make([]Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Name
	}
	return out
}

// ColumnTypes returns the column types as strings, aligned with ColumnNames.
func (d *Dataset) ColumnTypes() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = string(c.Type)
	}
	return out
}

// Column returns the descriptor for name.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// HasColumn reports whether the dataset has a column called name.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// Empty reports whether the dataset has no rows.
func (d *Dataset) Empty() bool {
	return d.Len() == 0
}

// Row returns a copy of row i as a Record.
func (d *Dataset) Row(i int) Record {
	rec := make(Record, len(d.columns))
	for c, col := range d.columns {
		rec[col.Name] = d.rows[i][c]
	}
	return rec
}

// Values returns a copy of row i in column order.
func (d *Dataset) Values(i int) []any {
	out := make([]any, len(d.columns))
	copy(out, d.rows[i])
	return out
}

// Records returns every row as a Record.
func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.rows))
	for i := range d.rows {
		out[i] = d.Row(i)
	}
	return out
}

// ColumnValues returns every value of the named column.
func (d *Dataset) ColumnValues(name string) ([]any, error) {
	c, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	out := make([]any, len(d.rows))
	for i, row := range d.rows {
		out[i] = row[c]
	}
	return out, nil
}

// Unique returns the sorted distinct non-null values of a column, formatted as text.
func (d *Dataset) Unique(name string) ([]string, error) {
	values, err := d.ColumnValues(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if v == nil {
			continue
		}
		s := FormatValue(v)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Head returns a dataset with at most the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	if n < 0 {
		n = 0
	}
	if n > len(d.rows) {
		n = len(d.rows)
	}
	return d.withRows(d.rows[:n])
}

// Filter returns the rows for which keep returns true.
func (d *Dataset) Filter(keep func(Record) bool) *Dataset {
	var kept [][]any
	for i, row := range d.rows {
		if keep(d.Row(i)) {
			kept = append(kept, row)
		}
	}
	return d.withRows(kept)
}

// Take returns the rows at the given positions, in that order.
func (d *Dataset) Take(positions []int) (*Dataset, error) {
	rows := make([][]any, len(positions))
	for i, p := range positions {
		if p < 0 || p >= len(d.rows) {
			return nil, fmt.Errorf("row %d out of range [0, %d)", p, len(d.rows))
		}
		rows[i] = d.rows[p]
	}
	return d.withRows(rows), nil
}

// Select returns a dataset restricted to the named columns, in that order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	positions := make([]int, len(names))
	for i, name := range names {
		c, ok := d.index[name]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		positions[i] = c
	}
	rows := make([][]any, len(d.rows))
	for r, row := range d.rows {
		out := make([]any, len(positions))
		for i, c := range positions {
			out[i] = row[c]
		}
		rows[r] = out
	}
	return New(names, rows)
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	return d.withRows(d.rows)
}

// withRows copies rows into a new dataset that keeps this dataset's schema.
func (d *Dataset) withRows(rows [][]any) *Dataset {
	data := make([][]any, len(rows))
	for i, row := range rows {
		cp := make([]any, len(row))
		copy(cp, row)
		data[i] = cp
	}
	index := make(map[string]int, len(d.index))
	for k, v := range d.index {
		index[k] = v
	}
	return &Dataset{columns: d.Columns(), rows: data, index: index}
}

// Schema renders one "name: type" line per column.
func (d *Dataset) Schema() string {
	var sb strings.Builder
	for i, c := range d.columns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %s", c.Name, c.Type)
	}
	return sb.String()
}

// FormatValue renders a scalar the way it is shown to users and models.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if isMidnight(val) {
			return val.Format(DateLayout)
		}
		return val.Format(time.RFC3339)
	case float64:
		return formatFloat(val)
	default:
		return fmt.Sprint(val)
	}
}

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	stringerType = reflect.TypeFor[fmt.Stringer]()
)

// TableFormatter aligns results in columns.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format renders a Table as is. A slice of structs becomes one row per
// element, a struct one FIELD/VALUE row per field and a map one KEY/VALUE
// row per entry. Other values are written as JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	var tbl *Table
	switch d := data.(type) {
	case nil:
		return nil
	case *Table:
		tbl = d
	case Table:
		tbl = &d
	default:
		var ok bool
		if tbl, ok = tableOf(reflect.ValueOf(data), f.Wide); !ok {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		}
	}
	return tbl.render(w, f.NoHeaders)
}

func tableOf(v reflect.Value, wide bool) (*Table, bool) {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return &Table{}, true
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return rowsOf(v, wide), true
	case reflect.Map:
		tbl := NewTable("KEY", "VALUE")
		for it := v.MapRange(); it.Next(); {
			tbl.AddRow(formatValue(it.Key()), formatValue(it.Value()))
		}
		return tbl, true
	case reflect.Struct:
		tbl := NewTable("FIELD", "VALUE")
		for _, c := range columns(v.Type(), true) {
			tbl.AddRow(c.name, formatValue(v.Field(c.index)))
		}
		return tbl, true
	}
	return nil, false
}

// rowsOf renders struct elements column-wise and anything else as a single
// VALUE column. Nil elements are skipped.
func rowsOf(v reflect.Value, wide bool) *Table {
	elem := v.Type().Elem()
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct || elem == timeType {
		tbl := NewTable("VALUE")
		for i := range v.Len() {
			tbl.AddRow(formatValue(v.Index(i)))
		}
		return tbl
	}

	cols := columns(elem, wide)
	tbl := &Table{Headers: make([]string, len(cols))}
	for i, c := range cols {
		tbl.Headers[i] = strings.ToUpper(toSnakeCase(c.name))
	}
	for i := range v.Len() {
		e := v.Index(i)
		if e.Kind() == reflect.Pointer {
			if e.IsNil() {
				continue
			}
			e = e.Elem()
		}
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = formatValue(e.Field(c.index))
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl
}

type column struct {
	name  string
	index int
}

// columns picks the exported fields to show, named after their json tag.
func columns(t reflect.Type, wide bool) []column {
	var out []column
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("table")
		if !f.IsExported() || tag == "-" || (!wide && strings.Contains(tag, "wide")) {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			name = f.Name
		}
		out = append(out, column{name: name, index: i})
	}
	return out
}

// formatValue renders one cell. Empty and nil values show as "-".
func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}

	switch v.Type() {
	case timeType:
		if t := v.Interface().(time.Time); !t.IsZero() {
			return t.Local().Format(time.DateTime)
		}
		return "-"
	case durationType:
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.String:
		return orDash(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', 2, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() != reflect.String {
			if v.Len() == 0 {
				return "-"
			}
			return fmt.Sprintf("[%d items]", v.Len())
		}
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = v.Index(i).String()
		}
		return orDash(strings.Join(parts, ","))
	case reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	}
	if v.Type().Implements(stringerType) {
		return v.Interface().(fmt.Stringer).String()
	}
	return fmt.Sprint(v.Interface())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// toSnakeCase puts an underscore before every inner upper-case letter.
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && 'A' <= r && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Table is pre-rendered tabular output.
type Table struct {
	Headers []string
	Rows    [][]string
}

func NewTable(headers ...string) *Table { return &Table{Headers: headers} }

func (t *Table) AddRow(cells ...string) { t.Rows = append(t.Rows, cells) }

// Render writes the table with its header line.
func (t *Table) Render(w io.Writer) error { return t.render(w, false) }

func (t *Table) render(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	lines := t.Rows
	if !noHeaders && len(t.Headers) > 0 {
		lines = append([][]string{t.Headers}, lines...)
	}
	for _, cells := range lines {
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

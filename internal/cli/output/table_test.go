package output

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

type registrationRow struct {
	Path     string        `json:"path"`
	Owner    string        `json:"owner"`
	Services []string      `json:"services"`
	Age      time.Duration `json:"age"`
	ID       string        `json:"id" table:"wide"`
	internal string
	Secret   string `table:"-"`
}

func render(t *testing.T, f *TableFormatter, data any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	return buf.String()
}

func TestTableFormatter_Slice(t *testing.T) {
	rows := []registrationRow{{
		Path:     "/user/orders",
		Owner:    "http://a:1",
		Services: []string{"/x", "/y"},
		Age:      90 * time.Second,
		ID:       "node-a/user/orders",
		internal: "hidden",
		Secret:   "s3cret",
	}}

	tests := []struct {
		name    string
		wide    bool
		want    []string
		notWant []string
	}{
		{"narrow", false, []string{"PATH", "OWNER", "SERVICES", "AGE", "/x,/y", "1m30s"}, []string{"ID", "node-a", "s3cret", "hidden"}},
		{"wide", true, []string{"ID", "node-a/user/orders"}, []string{"s3cret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := render(t, &TableFormatter{Wide: tt.wide}, rows)
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("output contains %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestTableFormatter_Shapes(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"nil", nil, ""},
		{"table", &Table{Headers: []string{"A", "B"}, Rows: [][]string{{"1", "2"}}}, "A  B\n1  2\n"},
		{"strings", []string{"x", "y"}, "VALUE\nx\ny\n"},
		{"map", map[string]int{"k": 1}, "KEY  VALUE\nk    1\n"},
		{"struct", struct {
			Name string `json:"name"`
		}{"n"}, "FIELD  VALUE\nname   n\n"},
		{"pointer slice", []*registrationRow{nil}, "PATH  OWNER  SERVICES  AGE\n"},
		{"scalar falls back to json", 42, "42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(t, &TableFormatter{}, tt.data); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTableFormatter_NoHeaders(t *testing.T) {
	got := render(t, &TableFormatter{NoHeaders: true}, NewTable("A"))
	if got != "" {
		t.Errorf("Format() = %q, want empty", got)
	}
}

func TestFormatValue(t *testing.T) {
	var nilPtr *int
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"empty string", "", "-"},
		{"int", 7, "7"},
		{"uint", uint(3), "3"},
		{"float", 1.5, "1.50"},
		{"bool", true, "true"},
		{"duration", 2 * time.Second, "2s"},
		{"zero time", time.Time{}, "-"},
		{"empty slice", []int{}, "-"},
		{"int slice", []int{1, 2}, "[2 items]"},
		{"map", map[string]int{"a": 1}, "{1 keys}"},
		{"nil pointer", nilPtr, "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(reflect.ValueOf(tt.v)); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"path":          "path",
		"clientID":      "client_I_D",
		"LastHeartbeat": "Last_Heartbeat",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

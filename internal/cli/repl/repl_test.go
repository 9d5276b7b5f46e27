package repl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

type recorder struct {
	calls [][]string
	err   error
}

func (r *recorder) Execute(_ context.Context, args []string) error {
	r.calls = append(r.calls, args)
	return r.err
}

func newTestREPL(input string, exec Executor) (*REPL, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return New(Config{
		Input:    strings.NewReader(input),
		Output:   out,
		Executor: exec,
		Commands: []string{"send", "send-all", "status"},
	}), out
}

func TestREPL_Run_Exit(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"exit", "exit\nsend /a x\n"},
		{"quit", "quit\n"},
		{"EOF", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r, _ := newTestREPL(tt.input, rec)
			if err := r.Run(context.Background()); err != nil {
				t.Errorf("Run() error = %v", err)
			}
			if len(rec.calls) != 0 {
				t.Errorf("executor called %d times, want 0", len(rec.calls))
			}
		})
	}
}

func TestREPL_Run_Dispatch(t *testing.T) {
	rec := &recorder{}
	r, out := newTestREPL("\n  \nsend /user/a \"hello world\"\nstatus\nsned\nhistory\n", rec)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := [][]string{{"send", "/user/a", "hello world"}, {"status"}}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %q, want %q", rec.calls, want)
	}
	for _, s := range []string{`unknown command "sned", did you mean: send, send-all, status`, "   1  send /user/a"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("output missing %q:\n%s", s, out.String())
		}
	}
}

func TestREPL_Run_Errors(t *testing.T) {
	rec := &recorder{err: errors.New("no receptionist")}
	r, out := newTestREPL("status\nsend \"open\n", rec)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, s := range []string{"error: no receptionist", "error: unterminated quote"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("output missing %q:\n%s", s, out.String())
		}
	}

	rec = &recorder{err: ErrExit}
	r, _ = newTestREPL("status\nstatus\n", rec)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rec.calls) != 1 {
		t.Errorf("calls after ErrExit = %d, want 1", len(rec.calls))
	}
}

func TestREPL_Help(t *testing.T) {
	r, out := newTestREPL("help\n", ExecutorFunc(func(context.Context, []string) error { return nil }))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, cmd := range []string{"exit", "help", "history", "send", "send-all", "status"} {
		if !strings.Contains(out.String(), "  "+cmd+"\n") {
			t.Errorf("help missing %q", cmd)
		}
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"", nil, false},
		{"  status  ", []string{"status"}, false},
		{"send /a x", []string{"send", "/a", "x"}, false},
		{`send /a "a b"`, []string{"send", "/a", "a b"}, false},
		{`send /a "{\"k\":1}"`, []string{"send", "/a", `{"k":1}`}, false},
		{`send /a ""`, []string{"send", "/a", ""}, false},
		{`send "x`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Split(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Split(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestCompleter(t *testing.T) {
	c := NewCompleter([]string{"status", "send", "send-all", "send", ""})

	if got, want := c.Complete("se"), []string{"send", "send-all"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Complete(se) = %v, want %v", got, want)
	}
	if got := c.Complete("x"); got != nil {
		t.Errorf("Complete(x) = %v, want nil", got)
	}
	if !c.Known("send") || c.Known("sen") {
		t.Error("Known() mismatch")
	}
}

func TestHistory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "history")
	h := NewHistory(file)
	h.Add("status")
	h.Add("status")
	h.Add("")
	h.Add("send /a x")

	if got := h.Get(0); got != "send /a x" {
		t.Errorf("Get(0) = %q, want %q", got, "send /a x")
	}
	if got := h.Get(5); got != "" {
		t.Errorf("Get(5) = %q, want empty", got)
	}
	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("history file mode = %o, want 600", perm)
	}

	loaded := NewHistory(file)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, want := loaded.Entries(), []string{"status", "send /a x"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
}

func TestHistory_Limit(t *testing.T) {
	h := NewHistory("")
	for i := 0; i < maxHistory+10; i++ {
		h.Add(strings.Repeat("x", i+1))
	}
	if got := len(h.Entries()); got != maxHistory {
		t.Errorf("len(Entries()) = %d, want %d", got, maxHistory)
	}
	if err := h.Load(); err != nil {
		t.Errorf("Load() without file error = %v", err)
	}
	if err := h.Save(); err != nil {
		t.Errorf("Save() without file error = %v", err)
	}
}

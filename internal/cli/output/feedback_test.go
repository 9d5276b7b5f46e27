package output

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer written by the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner(t *testing.T) {
	tests := []struct {
		name string
		end  func(*Spinner)
		want string
	}{
		{"stop", (*Spinner).Stop, "\033[K"},
		{"success", func(s *Spinner) { s.Success("delivered") }, "✓ delivered\n"},
		{"fail", func(s *Spinner) { s.Fail("unreachable") }, "✗ unreachable\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf syncBuffer
			s := NewSpinner(&buf, "waiting")
			s.Start()
			time.Sleep(30 * time.Millisecond)
			tt.end(s)
			s.Stop()

			out := buf.String()
			if !strings.Contains(out, "waiting") {
				t.Errorf("output %q missing message", out)
			}
			if !strings.HasSuffix(out, tt.want) {
				t.Errorf("output %q, want suffix %q", out, tt.want)
			}
		})
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	var buf syncBuffer
	NewSpinner(&buf, "idle").Stop()
	if got := buf.String(); got != "\r\033[K" {
		t.Errorf("output = %q, want line clear only", got)
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, "send", 4)
	p.Done(nil)
	p.Done(errors.New("boom"))
	p.Done(nil)
	p.Finish()

	ok, failed := p.Counts()
	if ok != 2 || failed != 1 {
		t.Errorf("Counts() = %d, %d, want 2, 1", ok, failed)
	}
	if out := buf.String(); !strings.Contains(out, "3/4 failed=1") || !strings.HasSuffix(out, "\n") {
		t.Errorf("output = %q", out)
	}
}

func TestProgress_UnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, "send", 0)
	p.Done(nil)
	if got := buf.String(); got != "\rsend 1" {
		t.Errorf("output = %q, want %q", got, "\rsend 1")
	}
}

package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Progress draws a bar for a known number of operations, counting
// successes and failures separately.
type Progress struct {
	mu     sync.Mutex
	w      io.Writer
	title  string
	total  int
	ok     int
	failed int
	width  int
}

// NewProgress creates a progress bar for total operations.
func NewProgress(w io.Writer, title string, total int) *Progress {
	return &Progress{w: w, title: title, total: total, width: 30}
}

// Done records one finished operation and redraws the bar.
func (p *Progress) Done(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
	} else {
		p.ok++
	}
	p.render()
}

// Finish ends the line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render()
	fmt.Fprintln(p.w)
}

// Counts returns the successes and failures so far.
func (p *Progress) Counts() (ok, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ok, p.failed
}

func (p *Progress) render() {
	n := p.ok + p.failed
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %d", p.title, n)
		return
	}
	ratio := float64(n) / float64(p.total)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(float64(p.width) * ratio)
	fmt.Fprintf(p.w, "\r%s [%s%s] %d/%d failed=%d",
		p.title,
		strings.Repeat("█", filled),
		strings.Repeat("░", p.width-filled),
		n, p.total, p.failed)
}

package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	spinnerFrames   = "⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏"
	spinnerInterval = 100 * time.Millisecond
	clearLine       = "\r\033[K"
)

// Spinner redraws message on one line until it is ended by Stop, Success
// or Fail. Only the first of those has an effect.
type Spinner struct {
	w       io.Writer
	message string

	end     sync.Once
	stop    chan struct{}
	stopped sync.WaitGroup
}

func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{w: w, message: message, stop: make(chan struct{})}
}

func (s *Spinner) Start() {
	frames := []rune(spinnerFrames)
	s.stopped.Add(1)
	go func() {
		defer s.stopped.Done()
		tick := time.NewTicker(spinnerInterval)
		defer tick.Stop()
		for i := 0; ; i = (i + 1) % len(frames) {
			fmt.Fprintf(s.w, "\r%c %s", frames[i], s.message)
			select {
			case <-s.stop:
				return
			case <-tick.C:
			}
		}
	}()
}

// Stop clears the line.
func (s *Spinner) Stop() { s.finish("") }

func (s *Spinner) Success(message string) { s.finish("✓ " + message + "\n") }

func (s *Spinner) Fail(message string) { s.finish("✗ " + message + "\n") }

func (s *Spinner) finish(last string) {
	s.end.Do(func() {
		close(s.stop)
		s.stopped.Wait()
		io.WriteString(s.w, clearLine+last)
	})
}

package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// slowAfter is when the spinner starts showing the elapsed time.
const slowAfter = 3 * time.Second

// Spinner animates a label on one stderr line while the CLI waits on the
// planner server. It draws the same frames as the board's loading spinner.
type Spinner struct {
	out    io.Writer
	frames spinner.Spinner
	label  string

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewSpinner creates a spinner writing to out.
func NewSpinner(out io.Writer, label string) *Spinner {
	return &Spinner{out: out, frames: spinner.Dot, label: label}
}

// WithSpinner runs fn behind a spinner when show is set.
func WithSpinner(out io.Writer, show bool, label string, fn func() error) error {
	if !show {
		return fn()
	}
	s := NewSpinner(out, label)
	s.Start()
	defer s.Stop()
	return fn()
}

// Start begins drawing. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done, time.Now())
}

func (s *Spinner) run(stop <-chan struct{}, done chan<- struct{}, started time.Time) {
	defer close(done)
	ticker := time.NewTicker(s.frames.FPS)
	defer ticker.Stop()
	for i := 0; ; i = (i + 1) % len(s.frames.Frames) {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			fmt.Fprint(s.out, "\r"+s.line(s.frames.Frames[i], now.Sub(started)))
		}
	}
}

func (s *Spinner) line(frame string, elapsed time.Duration) string {
	out := StylePrimary.Render(frame) + " " + s.label
	if elapsed >= slowAfter {
		out += StyleSubtle.Render(fmt.Sprintf(" (%ds)", int(elapsed.Seconds())))
	}
	return out
}

// Stop waits for the last frame and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	fmt.Fprint(s.out, "\r\033[K")
}

// Package components provides terminal UI components for the parcel CLI.
package components

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"parcel/internal/cli/ui/styles"
)

// Spinner renders an animated progress line for a long-running step.
// It runs on its own goroutine and can be stopped and restarted between
// steps, so a sequential workflow can reuse one instance. A quiet
// spinner renders nothing.
type Spinner struct {
	mu      sync.Mutex
	out     io.Writer
	frames  spinner.Spinner
	style   lipgloss.Style
	message string
	quiet   bool
	done    chan struct{}
	stopped chan struct{}
}

// SpinnerOption configures a Spinner.
type SpinnerOption func(*Spinner)

// NewSpinner creates a spinner writing to stderr.
func NewSpinner(opts ...SpinnerOption) *Spinner {
	s := &Spinner{
		out:    os.Stderr,
		frames: spinner.Dot,
		style:  lipgloss.NewStyle().Foreground(styles.ColorPrimary),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithQuiet disables all spinner output.
func WithQuiet(quiet bool) SpinnerOption {
	return func(s *Spinner) { s.quiet = quiet }
}

// WithOutput sets the spinner's writer.
func WithOutput(w io.Writer) SpinnerOption {
	return func(s *Spinner) { s.out = w }
}

// Start begins animating with the given message, replacing any running
// animation.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quiet {
		return
	}

	s.stopLocked("")
	s.message = message
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.run(s.done, s.stopped, message)
}

func (s *Spinner) run(done <-chan struct{}, stopped chan<- struct{}, message string) {
	defer close(stopped)

	// bubbles encodes FPS as the duration of one frame.
	interval := s.frames.FPS
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-done:
			fmt.Fprint(s.out, "\r\033[2K")
			return
		case <-ticker.C:
			glyph := s.frames.Frames[frame%len(s.frames.Frames)]
			fmt.Fprintf(s.out, "\r\033[2K%s %s", s.style.Render(glyph), message)
			frame++
		}
	}
}

// stopLocked halts the animation and prints final, if any. Callers hold mu.
func (s *Spinner) stopLocked(final string) {
	if s.done != nil {
		close(s.done)
		<-s.stopped
		s.done = nil
		s.stopped = nil
	}
	if final != "" && !s.quiet {
		fmt.Fprintln(s.out, final)
	}
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked("")
}

// Success stops the spinner and prints a success line.
func (s *Spinner) Success(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(styles.RenderSuccess(message))
}

// Fail stops the spinner and prints an error line.
func (s *Spinner) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(styles.RenderError(message))
}

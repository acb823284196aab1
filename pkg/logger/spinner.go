package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/term"
)

// SpinnerFrames cycle while a spinner runs.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a message on one terminal line while a slow operation
// runs. On anything but a terminal it prints the message once instead.
type Spinner struct {
	out      io.Writer
	clock    clockwork.Clock
	interval time.Duration
	animate  bool
	colored  bool

	mu      sync.Mutex
	message string
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a spinner on the default logger's output.
func NewSpinner(message string) *Spinner {
	w, colored := output()
	return newSpinner(w, clockwork.NewRealClock(), message, isTerminal(w), colored)
}

func newSpinner(w io.Writer, clock clockwork.Clock, message string, animate, colored bool) *Spinner {
	return &Spinner{
		out:      w,
		clock:    clock,
		interval: 100 * time.Millisecond,
		animate:  animate,
		colored:  colored,
		message:  message,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start begins the animation. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	if !s.animate {
		_, _ = fmt.Fprintf(s.out, "%s...\n", s.message)
		close(s.done)
		return
	}

	ticker := s.clock.NewTicker(s.interval)
	go s.loop(ticker, s.stop, s.done)
}

func (s *Spinner) loop(ticker clockwork.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	width := 0
	for i := 0; ; i++ {
		s.mu.Lock()
		line := paint(keyColor, s.colored, SpinnerFrames[i%len(SpinnerFrames)]) + " " + s.message
		s.mu.Unlock()
		if len(line) > width {
			width = len(line)
		}
		_, _ = fmt.Fprintf(s.out, "\r%s", line)

		select {
		case <-stop:
			_, _ = fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", width))
			return
		case <-ticker.Chan():
		}
	}
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// UpdateMessage replaces the text shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs fn behind a spinner and logs how it went.
func WithSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()
	err := fn()
	spinner.Stop()

	if err != nil {
		Errorf("%s failed: %v", message, err)
	} else {
		Successf("%s completed", message)
	}
	return err
}

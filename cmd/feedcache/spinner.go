package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	spinnerFrameWidth = 2 // braille frames render about two columns
	spinnerAnimDelay  = 80 * time.Millisecond
	spinnerClearPad   = 5
)

// simpleSpinner animates a message while a load runs. On a non-terminal
// writer it prints the message once instead.
type simpleSpinner struct {
	frames   []string
	message  string
	w        io.Writer
	tty      bool
	clearLen int
	stop     chan struct{}
	done     sync.WaitGroup
}

func newSimpleSpinner(w io.Writer, message string) *simpleSpinner {
	return &simpleSpinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message:  message,
		w:        w,
		tty:      isTerminal(w),
		clearLen: spinnerFrameWidth + 1 + len(message),
		stop:     make(chan struct{}),
	}
}

func (s *simpleSpinner) Start() {
	if !s.tty {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}

	s.done.Add(1)
	go func() {
		defer s.done.Done()
		style := lipgloss.NewStyle().Foreground(colorPrimary)
		ticker := time.NewTicker(spinnerAnimDelay)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", style.Render(s.frames[i%len(s.frames)]), s.message)
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the animation and clears the line. The frame goroutine has
// exited when Stop returns.
func (s *simpleSpinner) Stop() {
	close(s.stop)
	s.done.Wait()
	if s.tty {
		fmt.Fprint(s.w, "\r"+strings.Repeat(" ", s.clearLen+spinnerClearPad)+"\r")
	}
}

// runWithSpinner runs an operation with a spinner, showing progress.
func runWithSpinner(w io.Writer, message string, operation func() error) error {
	if outputJSON {
		return operation()
	}
	spin := newSimpleSpinner(w, message)
	spin.Start()
	defer spin.Stop()
	return operation()
}

// Package spinner draws a one-line progress indicator for long-running jobs.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Interval is the redraw period.
var Interval = 80 * time.Millisecond

// Spinner animates a message with an optional percentage on w.
type Spinner struct {
	w        io.Writer
	mu       sync.Mutex
	message  string
	progress int
	width    int

	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start displays an animated spinner with the given message on w.
// Call Stop to halt it and clear the line.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:        w,
		message:  message,
		progress: -1,
		done:     make(chan struct{}),
		cleared:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Update replaces the message and percentage. A negative progress hides the
// percentage.
func (s *Spinner) Update(progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = progress
	if message != "" {
		s.message = message
	}
}

// Stop halts the animation and clears the line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.cleared
}

func (s *Spinner) line(frame string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progress >= 0 {
		return fmt.Sprintf("%s %3d%% %s", frame, s.progress, s.message)
	}
	return fmt.Sprintf("%s %s", frame, s.message)
}

func (s *Spinner) run() {
	i := 0
	for {
		select {
		case <-s.done:
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width)) //nolint:errcheck
			close(s.cleared)
			return
		case <-time.After(Interval):
			text := s.line(frames[i%len(frames)])
			w := runewidth.StringWidth(text)
			pad := ""
			if w < s.width {
				pad = strings.Repeat(" ", s.width-w)
			}
			s.width = max(s.width, w)
			fmt.Fprintf(s.w, "\r%s%s", text, pad) //nolint:errcheck
			i++
		}
	}
}

package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Spinner displays an animated braille spinner with a scan progress counter
// on a writer (typically stderr). Progress may be called from any goroutine.
type Spinner struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	done    int
	total   int
	stop    chan struct{}
	stopped bool
}

// NewSpinner creates a spinner that writes to w.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{w: w}
}

// Start begins the animation for a run over total targets.
func (s *Spinner) Start(label string, total int) {
	s.mu.Lock()
	s.label = label
	s.total = total
	s.done = 0
	s.stop = make(chan struct{})
	s.stopped = false
	s.mu.Unlock()

	go s.loop()
}

// Advance records one finished target.
func (s *Spinner) Advance() {
	s.mu.Lock()
	s.done++
	s.mu.Unlock()
}

// Stop halts the spinner and clears its line. It is idempotent.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.stop == nil {
		return
	}
	s.stopped = true
	close(s.stop)
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message())+4))
}

// message must be called with mu held.
func (s *Spinner) message() string {
	return fmt.Sprintf("%s %d/%d", s.label, s.done, s.total)
}

func (s *Spinner) loop() {
	tick := time.NewTicker(80 * time.Millisecond)
	defer tick.Stop()

	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()

	for i := 0; ; i++ {
		select {
		case <-stop:
			return
		case <-tick.C:
			s.mu.Lock()
			if !s.stopped {
				// Pad to overwrite leftovers from a longer previous line.
				fmt.Fprintf(s.w, "%-80s", fmt.Sprintf("\r%c %s", spinnerFrames[i%len(spinnerFrames)], s.message()))
			}
			s.mu.Unlock()
		}
	}
}

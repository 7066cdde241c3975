package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/knotview/pkg/grammar"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner draws an animated status line while a scene builds. The message
// can change while it runs; scene status events move it from stage to stage.
type Spinner struct {
	w        io.Writer
	ctx      context.Context
	interval time.Duration

	mu      sync.Mutex
	message string
	drawn   int // widest line written, cleared on stop
	started bool

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// newSpinner creates a spinner writing to w that stops by itself when ctx
// is cancelled.
func newSpinner(ctx context.Context, w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		ctx:      ctx,
		interval: 80 * time.Millisecond,
		message:  message,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins the animation. Calling it twice has no effect.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.draw(spinnerFrames[i%len(spinnerFrames)])
			}
		}
	}()
}

// SetMessage replaces the text next to the animation.
func (s *Spinner) SetMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

// Message returns the current text.
func (s *Spinner) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := styleIconSpinner.Render(frame) + " " + StyleDim.Render(s.message)
	pad := ""
	if n := len(s.message) + 2; n < s.drawn {
		pad = strings.Repeat(" ", s.drawn-n)
	} else {
		s.drawn = n
	}
	fmt.Fprintf(s.w, "\r%s%s", line, pad)
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawn == 0 {
		return
	}
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.drawn+2))
	s.drawn = 0
}

// Stop ends the animation and clears the line. It is safe to call more than
// once, and before Start.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.stopped
		}
		s.clearLine()
	})
}

// StopWithError stops the spinner and prints msg as an error.
func (s *Spinner) StopWithError(msg string) {
	s.Stop()
	printError("%s", msg)
}

// Cancelled reports whether the spinner's context ended.
func (s *Spinner) Cancelled() bool {
	return s.ctx.Err() != nil
}

// track wraps a scene status function so that, until the spinner stops,
// each event also updates the spinner line. next may be nil.
func (s *Spinner) track(next grammar.StatusFunc) grammar.StatusFunc {
	return func(key string, value any) {
		select {
		case <-s.stop:
		default:
			if msg := stageMessage(key, value); msg != "" {
				s.SetMessage(msg)
			}
		}
		if next != nil {
			next(key, value)
		}
	}
}

// stageMessage describes a scene status event as an init stage.
func stageMessage(key string, value any) string {
	switch key {
	case grammar.StatusLayersIDs:
		if groups, ok := value.([][]string); ok {
			return fmt.Sprintf("Ordered %d knot groups...", len(groups))
		}
		return "Ordering knot groups..."
	case grammar.StatusPlotsData:
		if data, ok := value.([]grammar.KnotData); ok {
			return fmt.Sprintf("Sending plot data for %d knots...", len(data))
		}
		return "Sending plot data..."
	case grammar.StatusHighlight:
		return "Propagating highlights..."
	}
	return ""
}

package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner draws a one-line animation on stdout until stopped.
type Spinner struct {
	mu       sync.Mutex
	message  string
	frames   []string
	interval time.Duration
	started  bool
	done     chan struct{}
	finished chan struct{}
	once     sync.Once
}

func newSpinner(message string, s spinner.Spinner) *Spinner {
	return &Spinner{
		message:  message,
		frames:   s.Frames,
		interval: s.FPS,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// NewConnectionSpinner is for network round trips.
func NewConnectionSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Globe)
}

// NewWaitingSpinner is for waiting on another person.
func NewWaitingSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Points)
}

func (s *Spinner) Start() *Spinner {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.finished)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.mu.Lock()
			frame := SpinnerStyle.Render(s.frames[i%len(s.frames)])
			fmt.Printf("\r\033[K%s %s", frame, s.message)
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}

func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop clears the line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.finished
		}
		fmt.Print("\r\033[K")
	})
}

func (s *Spinner) Success(message string) {
	s.Stop()
	PrintSuccess(message)
}

func (s *Spinner) Error(message string) {
	s.Stop()
	PrintError(message)
}

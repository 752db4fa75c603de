package lifecycle

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Stamp is the process-run creation timestamp embedded in every transient
// dataset name. It is computed lazily on first use, reused for the lifetime
// of the run, and refreshed once it is older than the staleness window so a
// long-lived process never names datasets that look abandoned.
type Stamp struct {
	clock        clockwork.Clock
	refreshAfter time.Duration

	mu     sync.Mutex
	millis int64
}

func NewStamp(clock clockwork.Clock, refreshAfter time.Duration) *Stamp {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if refreshAfter <= 0 {
		refreshAfter = DefaultStaleAfter
	}
	return &Stamp{
		clock:        clock,
		refreshAfter: refreshAfter,
	}
}

// Millis returns the stamp in milliseconds since epoch, refreshing it first
// if it is unset or older than the refresh window.
func (s *Stamp) Millis() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now().UnixMilli()
	if s.millis == 0 || now-s.millis > s.refreshAfter.Milliseconds() {
		s.millis = now
	}
	return s.millis
}

// Refresh unconditionally resets the stamp to the current time and returns
// the new value.
func (s *Stamp) Refresh() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.millis = s.clock.Now().UnixMilli()
	return s.millis
}

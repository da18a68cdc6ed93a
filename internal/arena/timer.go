package arena

import "time"

// stopwatch measures fight time across pauses.
type stopwatch struct {
	running bool
	startAt time.Time
	elapsed time.Duration
}

func (s *stopwatch) toggle(now time.Time) {
	if s.running {
		s.elapsed += now.Sub(s.startAt)
		s.running = false
		return
	}
	s.running = true
	s.startAt = now
}

func (s *stopwatch) read(now time.Time) Timer {
	total := s.elapsed
	if s.running {
		total += now.Sub(s.startAt)
	}
	return Timer{Running: s.running, ElapsedMS: total.Milliseconds()}
}

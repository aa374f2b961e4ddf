package clock

import "time"

// Clock abstracts wall-clock reads so time-window checks are testable.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

package ports

import "time"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// SessionClock reports monotonic time elapsed since the current session
// started. Used to retime playback windows when records are handed to a
// live owner.
type SessionClock interface {
	Elapsed() time.Duration
}

type sessionClock struct {
	start time.Time
}

func NewSessionClock() SessionClock {
	return sessionClock{start: time.Now()}
}

func (c sessionClock) Elapsed() time.Duration {
	return time.Since(c.start)
}

package gateway

import "time"

// SetClock replaces the limiter's time source.
func (l *Limiter) SetClock(now func() time.Time) { l.now = now }

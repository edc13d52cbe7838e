package application

import "time"

// Clock supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now, in UTC so transcripts compare cleanly.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

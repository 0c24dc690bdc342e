package graph

import "time"

const secsPerDay = 60 * 60 * 24

// timeInKsecs returns the current unix epoch in seconds divided by 1000,
// the granularity edge timestamps are stored at.
func timeInKsecs() uint64 {
	return uint64(time.Now().Unix()) / 1000
}

// durationDaysSince returns whole days elapsed since a ksec timestamp.
func durationDaysSince(sinceKsecs uint64) uint64 {
	from := sinceKsecs * 1000
	now := uint64(time.Now().Unix())
	if now <= from {
		return 0
	}
	return (now - from) / secsPerDay
}

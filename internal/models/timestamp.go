package models

import "time"

// Timestamp is a wall-clock value assigned by the game store's own clock,
// used as the single origin for countdowns and scoring deltas. A write
// requesting a server timestamp may first be observed as an unresolved
// placeholder; the store later commits the resolved value.
type Timestamp struct {
	Millis   int64 `json:"millis"`
	Resolved bool  `json:"resolved"`
}

// ResolvedAt builds a resolved timestamp from a wall-clock value.
func ResolvedAt(t time.Time) Timestamp {
	return Timestamp{Millis: t.UnixMilli(), Resolved: true}
}

// PendingTimestamp is the placeholder readers observe before the store's
// clock has resolved the write.
func PendingTimestamp() Timestamp {
	return Timestamp{}
}

// Time converts the timestamp back to a wall-clock value. Only meaningful
// when Resolved is true.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(t.Millis)
}

package edgeauth

import "time"

// Fresh reports whether a request timestamp falls inside the replay
// window. The window is symmetric: a timestamp too far in the future is
// rejected the same as one too far in the past, so an edge server with a
// fast clock gets the same treatment as one replaying old traffic.
func Fresh(timestamp int64, now time.Time, window time.Duration) bool {
	skew := now.Unix() - timestamp
	if skew < 0 {
		skew = -skew
	}
	return skew <= int64(window.Seconds())
}

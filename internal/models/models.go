package models

import "time"

// Article is one purchasable item as returned by the Service Layer.
// InStock is only populated by the warehouse crossjoin query; the plain
// item listing leaves it at zero.
type Article struct {
	ItemCode string  `json:"ItemCode"`
	ItemName string  `json:"ItemName"`
	InStock  float64 `json:"InStock,omitempty"`
}

// Session mirrors the identity fields returned by /Login plus the local
// creation timestamp used for expiry math. The zero value means "no
// session".
type Session struct {
	SessionID      string
	TimeoutMinutes int
	CreatedAtMs    int64 // unix epoch milliseconds
}

// Empty reports whether no session fields are set at all.
func (s Session) Empty() bool {
	return s.SessionID == "" && s.TimeoutMinutes == 0 && s.CreatedAtMs == 0
}

// Expired reports whether the session has outlived its timeout at the
// given instant. A session missing its creation timestamp or timeout is
// always expired.
func (s Session) Expired(now time.Time) bool {
	if s.CreatedAtMs == 0 || s.TimeoutMinutes == 0 {
		return true
	}
	return now.UnixMilli()-s.CreatedAtMs > int64(s.TimeoutMinutes)*60_000
}

// Valid reports whether the session can authenticate requests: an
// identity is present and the timeout has not elapsed.
func (s Session) Valid(now time.Time) bool {
	return s.SessionID != "" && !s.Expired(now)
}

// Remaining returns how long the session has left before it expires.
// Zero or negative means it is already expired.
func (s Session) Remaining(now time.Time) time.Duration {
	deadline := s.CreatedAtMs + int64(s.TimeoutMinutes)*60_000
	return time.Duration(deadline-now.UnixMilli()) * time.Millisecond
}

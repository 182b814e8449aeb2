package users

import "time"

// Session is the persisted half of a session credential. ID is derived from
// the raw token handed to the browser; the token itself is never stored.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

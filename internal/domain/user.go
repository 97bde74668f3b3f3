package domain

import "time"

// Session identifies the authenticated operator.
type Session struct {
	Username  string
	ExpiresAt time.Time
}

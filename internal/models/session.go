package models

import "time"

// Session is one login: a signed bearer token with an absolute expiry.
// The token string is also the primary store key. Blacklisting is
// irreversible; an expired or blacklisted session never becomes valid again.
type Session struct {
	Token         string    `json:"token"`
	UserID        string    `json:"userId"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	IsBlacklisted bool      `json:"isBlacklisted"`
}

// Expired reports whether the session's lifetime has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

package models

import "time"

// Session binds a signed token to a user. The row is the source of
// truth for validity: a session is valid iff it exists and has not
// expired. Rows are deleted on logout and otherwise left inert.
type Session struct {
	Token     string    `gorm:"primaryKey;size:512"`
	UserID    string    `gorm:"size:36;index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}

// Expired reports whether the session is past its expiry at the given
// instant. Expiry exactly at now counts as expired.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

package models

import "time"

// AccessLog records denied access attempts for auditing. Actor is the
// acting user's email, or "unauthenticated" when no session resolved.
type AccessLog struct {
	ID        uint   `gorm:"primaryKey"`
	Actor     string `gorm:"size:255;index"`
	Route     string `gorm:"size:255"`
	Reason    string `gorm:"size:255"`
	IP        string `gorm:"size:64"`
	UserAgent string `gorm:"size:255"`
	CreatedAt time.Time
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group is a mentorship group: one mentor, many mentees.
type Group struct {
	ID          string  `gorm:"primaryKey;size:36"`
	GroupNumber int     `gorm:"uniqueIndex;not null"`
	Info        string  `gorm:"type:text"`
	MentorID    *string `gorm:"size:36;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Mentor  *User  `gorm:"foreignKey:MentorID"`
	Mentees []User `gorm:"foreignKey:GroupID"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Onboarding holds a user's onboarding answers and computed skill
// score. One row per user; retries overwrite the previous submission.
type Onboarding struct {
	ID              string `gorm:"primaryKey;size:36"`
	UserID          string `gorm:"size:36;uniqueIndex;not null"`
	Name            string `gorm:"size:128"`
	DegreeProgramme string `gorm:"size:128"`
	Gender          string `gorm:"size:32"`
	StudiedCS       bool
	YearsExperience int
	QuizAnswers     string `gorm:"type:text"` // raw answers as JSON
	SkillScore      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (o *Onboarding) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

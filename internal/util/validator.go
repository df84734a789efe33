package util

import (
	"errors"
	"strings"
)

// ValidateName checks a display name for the onboarding form.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if len(name) > 128 {
		return errors.New("name is too long")
	}
	return nil
}

// ValidateYearsExperience bounds the self-reported experience figure.
func ValidateYearsExperience(years int) error {
	if years < 0 {
		return errors.New("years of experience cannot be negative")
	}
	if years > 50 {
		return errors.New("years of experience is out of range")
	}
	return nil
}

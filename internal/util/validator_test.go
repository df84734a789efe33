package util

import (
	"strings"
	"testing"
)

func TestValidateName_Valid(t *testing.T) {
	for _, name := range []string{"Ada", "Ada Lovelace", "  Ada  "} {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) error = %v, want nil", name, err)
		}
	}
}

func TestValidateName_Invalid(t *testing.T) {
	for _, name := range []string{"", "   ", strings.Repeat("a", 129)} {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) error = nil, want error", name)
		}
	}
}

func TestValidateYearsExperience(t *testing.T) {
	for _, years := range []int{0, 1, 10, 50} {
		if err := ValidateYearsExperience(years); err != nil {
			t.Errorf("ValidateYearsExperience(%d) error = %v, want nil", years, err)
		}
	}
	for _, years := range []int{-1, 51, 1000} {
		if err := ValidateYearsExperience(years); err == nil {
			t.Errorf("ValidateYearsExperience(%d) error = nil, want error", years)
		}
	}
}

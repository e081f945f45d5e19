package model

import "strings"

// Category is the closed set of flag categories.
type Category string

// Flag categories.
const (
	CategoryHarmfulContent        Category = "Harmful Content"
	CategoryMisinformation        Category = "Misinformation"
	CategoryBias                  Category = "Bias/Discrimination"
	CategoryPrivacyViolation      Category = "Privacy Violation"
	CategoryInappropriateResponse Category = "Inappropriate Response"
	CategoryFactualError          Category = "Factual Error"
	CategoryOffTopic              Category = "Off-Topic Response"
)

// Categories lists every flag category in display order.
var Categories = []Category{
	CategoryHarmfulContent,
	CategoryMisinformation,
	CategoryBias,
	CategoryPrivacyViolation,
	CategoryInappropriateResponse,
	CategoryFactualError,
	CategoryOffTopic,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// ParseCategory matches s against the known categories ignoring case and
// surrounding space.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Severity bounds.
const (
	MinSeverity = 1
	MaxSeverity = 10
)

// Severity is a flag severity in [MinSeverity, MaxSeverity].
type Severity int

// NewSeverity clamps n into the valid range.
func NewSeverity(n int) Severity {
	switch {
	case n < MinSeverity:
		return MinSeverity
	case n > MaxSeverity:
		return MaxSeverity
	}
	return Severity(n)
}

// FlagStatus is the review state of a flag. Transitions open -> resolved only.
type FlagStatus string

// Flag statuses.
const (
	FlagOpen     FlagStatus = "open"
	FlagResolved FlagStatus = "resolved"
)

// Flag is a structured report about one interaction.
type Flag struct {
	ID            string     `json:"id"`
	InteractionID string     `json:"interaction_id"`
	UserEmail     string     `json:"user_email"`
	Category      Category   `json:"category"`
	Severity      Severity   `json:"severity"`
	Comments      string     `json:"comments"`
	Status        FlagStatus `json:"status"`
	TS            string     `json:"ts"`
}

// NewFlag is the body of POST /flags.
type NewFlag struct {
	InteractionID string   `json:"interaction_id" validate:"required"`
	UserEmail     string   `json:"user_email,omitempty"`
	Category      Category `json:"category" validate:"required,category"`
	Severity      Severity `json:"severity" validate:"min=1,max=10"`
	Comments      string   `json:"comments"`
}

package model

import (
	"time"

	"github.com/guregu/null/v5"
)

// DateLayout is the calendar date format used by exercise end dates.
const DateLayout = "2006-01-02"

// Exercise is an admin-managed red-teaming exercise.
type Exercise struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	EndDate     null.String `json:"end_date"`
	Guidelines  []string    `json:"guidelines"`
}

// EndTime parses EndDate. ok is false when the date is absent or unparseable
// (e.g. "Rolling").
func (e Exercise) EndTime() (time.Time, bool) {
	if !e.EndDate.Valid || e.EndDate.String == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, e.EndDate.String); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, e.EndDate.String); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// NewExercise is the body of POST /exercises.
type NewExercise struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	EndDate     string   `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Guidelines  []string `json:"guidelines"`
}

// ModelMapping binds a blind label to a concrete provider/model.
type ModelMapping struct {
	ID        string `json:"id"`
	Blind     string `json:"blind" validate:"required"`
	Provider  string `json:"provider" validate:"required"`
	Model     string `json:"model" validate:"required"`
	APIKeyEnv string `json:"api_key_env,omitempty"`
}

// Analytics is the aggregate returned by GET /admin/analytics.
type Analytics struct {
	Users        int `json:"users"`
	Interactions int `json:"interactions"`
	OpenFlags    int `json:"open_flags"`
}

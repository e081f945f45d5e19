package admin

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/okian/flames/internal/domain/model"
)

// Status narrows exercises by their end date relative to now.
type Status string

// Exercise statuses.
const (
	StatusAll    Status = "all"
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// ParseStatus accepts all, active or ended. Empty means all.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusAll, nil
	case StatusAll, StatusActive, StatusEnded:
		return st, nil
	}
	return "", errors.Mark(errors.Newf("status %q: want all, active or ended", s), ErrUnknownStatus)
}

// Filter selects exercises.
type Filter struct {
	Status Status
	// EndsBy, when set, keeps only exercises ending on or before it.
	EndsBy time.Time
}

// FilterExercises applies f at time now. Exercises without an end date are
// active. An end date that does not parse matches neither active nor ended.
func FilterExercises(list []model.Exercise, f Filter, now time.Time) []model.Exercise {
	out := make([]model.Exercise, 0, len(list))
	for _, ex := range list {
		hasEnd := ex.EndDate.Valid && ex.EndDate.String != ""
		end, parsed := ex.EndTime()

		switch f.Status {
		case StatusActive:
			if hasEnd && (!parsed || end.Before(now)) {
				continue
			}
		case StatusEnded:
			if !hasEnd || !parsed || !end.Before(now) {
				continue
			}
		}
		if !f.EndsBy.IsZero() && (!parsed || end.After(f.EndsBy)) {
			continue
		}
		out = append(out, ex)
	}
	return out
}

package domain

import (
	"errors"
	"strings"
	"time"
)

// GoalRequest is the race goal submitted for plan generation.
// GoalTargetTimeSeconds is an alias accepted for TargetFinishTimeSeconds.
type GoalRequest struct {
	RaceDate                string   `json:"raceDate" yaml:"raceDate"`
	RaceDistance            string   `json:"raceDistance" yaml:"raceDistance"`
	TargetFinishTimeSeconds *int     `json:"targetFinishTimeSeconds,omitempty" yaml:"targetFinishTimeSeconds,omitempty"`
	GoalTargetTimeSeconds   *int     `json:"goalTargetTimeSeconds,omitempty" yaml:"goalTargetTimeSeconds,omitempty"`
	Description             *string  `json:"description,omitempty" yaml:"description,omitempty"`
	WeeklyTrainingDays      *int     `json:"weeklyTrainingDays,omitempty" yaml:"weeklyTrainingDays,omitempty"`
	LongRunDay              *string  `json:"longRunDay,omitempty" yaml:"longRunDay,omitempty"`
	AvailableEquipment      []string `json:"availableEquipment,omitempty" yaml:"availableEquipment,omitempty"`
}

// TargetTime resolves the target finish time from the explicit value or its alias.
func (g GoalRequest) TargetTime() *int {
	if g.TargetFinishTimeSeconds != nil {
		return g.TargetFinishTimeSeconds
	}
	return g.GoalTargetTimeSeconds
}

var errEmptyDate = errors.New("empty date")

// ParseDate accepts a calendar date (YYYY-MM-DD) or an RFC 3339 timestamp and
// returns the UTC midnight of that calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyDate
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

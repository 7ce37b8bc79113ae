package domain

import (
	"time"
)

// WorkoutStatus is mutated by check-in / log actions, never by generation.
type WorkoutStatus string

const (
	WorkoutStatusScheduled WorkoutStatus = "scheduled"
	WorkoutStatusCompleted WorkoutStatus = "completed"
	WorkoutStatusMissed    WorkoutStatus = "missed"
)

// Valid reports whether s is one of the known workout statuses.
func (s WorkoutStatus) Valid() bool {
	switch s {
	case WorkoutStatusScheduled, WorkoutStatusCompleted, WorkoutStatusMissed:
		return true
	}
	return false
}

// Rating bounds for sleep quality, body feel and difficulty.
const (
	MinRating = 1
	MaxRating = 10
)

// DateLayout is the calendar date format used for scheduled dates and race dates.
const DateLayout = "2006-01-02"

// WorkoutPayload is the auxiliary metadata carried over from generation.
// Stores keep it verbatim; the presentation layer uses WeekNumber and
// MicrocycleFocus to rebuild weekly groupings.
type WorkoutPayload struct {
	Effort          *string `json:"effort,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	WeekNumber      int     `json:"weekNumber"`
	MicrocycleFocus string  `json:"microcycleFocus,omitempty"`
}

// Workout represents a single scheduled session within a TrainingPlan.
type Workout struct {
	ID             string        `json:"id"`
	TrainingPlanID string        `json:"trainingPlanId"`
	ScheduledDate  time.Time     `json:"scheduledDate"` // UTC midnight
	Sequence       int           `json:"sequence"`      // generation order within the plan
	WorkoutType    string        `json:"workoutType"`
	Description    string        `json:"description,omitempty"`
	DistanceKm     *float64      `json:"distanceKm"`
	TargetPace     *string       `json:"targetPace"`
	Status         WorkoutStatus `json:"status"`

	// Pre-session check-in
	PreRunSleepQuality *int `json:"preRunSleepQuality"`
	PreRunBodyFeel     *int `json:"preRunBodyFeel"`

	// Post-session log
	UserFeedbackDifficulty *int    `json:"userFeedbackDifficulty"`
	UserFeedbackNotes      *string `json:"userFeedbackNotes"`

	AdditionalPayload *WorkoutPayload `json:"additionalPayload"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// WorkoutUpdate is a partial update of the check-in / log fields.
// Nil fields are left untouched; schedule fields cannot be changed this way.
type WorkoutUpdate struct {
	Status                 *WorkoutStatus
	PreRunSleepQuality     *int
	PreRunBodyFeel         *int
	UserFeedbackDifficulty *int
	UserFeedbackNotes      *string
}

// IsEmpty reports whether the update changes nothing.
func (u WorkoutUpdate) IsEmpty() bool {
	return u.Status == nil && u.PreRunSleepQuality == nil && u.PreRunBodyFeel == nil &&
		u.UserFeedbackDifficulty == nil && u.UserFeedbackNotes == nil
}

// Apply copies the non-nil fields of u onto w.
func (u WorkoutUpdate) Apply(w *Workout) {
	if u.Status != nil {
		w.Status = *u.Status
	}
	if u.PreRunSleepQuality != nil {
		w.PreRunSleepQuality = u.PreRunSleepQuality
	}
	if u.PreRunBodyFeel != nil {
		w.PreRunBodyFeel = u.PreRunBodyFeel
	}
	if u.UserFeedbackDifficulty != nil {
		w.UserFeedbackDifficulty = u.UserFeedbackDifficulty
	}
	if u.UserFeedbackNotes != nil {
		w.UserFeedbackNotes = u.UserFeedbackNotes
	}
}

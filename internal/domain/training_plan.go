// internal/domain/training_plan.go
package domain

import (
	"encoding/json"
	"time"
)

// PlanStatus tracks where a plan is in the generation lifecycle.
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "draft"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
)

// IsTerminal reports whether no further generation transition is expected.
func (s PlanStatus) IsTerminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusFailed
}

// TrainingPlan is a generated, periodised schedule tied to one race goal.
// UserID, the goal fields and PromptContext are fixed when the draft is created.
type TrainingPlan struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	GoalRaceDistance      string  `json:"goalRaceDistance"`
	GoalRaceDate          string  `json:"goalRaceDate"` // YYYY-MM-DD
	GoalTargetTimeSeconds *int    `json:"goalTargetTimeSeconds"`
	GoalNotes             *string `json:"goalNotes"`

	Status          PlanStatus      `json:"status"`
	AIModel         string          `json:"aiModel"`
	PromptContext   json.RawMessage `json:"promptContext"`
	PlanPayload     json.RawMessage `json:"planPayload"` // nil until completed
	ConfidenceScore *float64        `json:"confidenceScore"`
	GenerationNotes *string         `json:"generationNotes"`

	GeneratedAt *time.Time `json:"generatedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PlanCompletion carries everything written when a draft becomes completed.
type PlanCompletion struct {
	Payload         json.RawMessage
	ConfidenceScore *float64
	GeneratedAt     time.Time
	Notes           *string
}

// CanComplete reports whether a plan in status s may be marked completed.
// Re-completing an already completed plan is allowed (last write wins).
func CanComplete(s PlanStatus) bool {
	return s == PlanStatusDraft || s == PlanStatusCompleted
}

// CanFail reports whether a plan in status s may be marked failed.
func CanFail(s PlanStatus) bool {
	return s == PlanStatusDraft || s == PlanStatusFailed
}

package api

import (
	"encoding/json"
	"time"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/planparser"
	"pbassistant/backend/internal/service"
)

// --- Plan DTOs ---

type CreatePlanRequest struct {
	domain.GoalRequest
	// GoalNotes is accepted for Description.
	GoalNotes *string `json:"goalNotes,omitempty"`
}

// Goal resolves aliases into the domain request.
func (r CreatePlanRequest) Goal() domain.GoalRequest {
	g := r.GoalRequest
	if g.Description == nil {
		g.Description = r.GoalNotes
	}
	return g
}

type PlanResponse struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"userId"`
	GoalRaceDistance      string            `json:"goalRaceDistance"`
	GoalRaceDate          string            `json:"goalRaceDate"`
	GoalTargetTimeSeconds *int              `json:"goalTargetTimeSeconds"`
	GoalNotes             *string           `json:"goalNotes"`
	Status                domain.PlanStatus `json:"status"`
	AIModel               string            `json:"aiModel"`
	PromptContext         json.RawMessage   `json:"promptContext,omitempty"`
	PlanPayload           json.RawMessage   `json:"planPayload"`
	ConfidenceScore       *float64          `json:"confidenceScore"`
	GenerationNotes       *string           `json:"generationNotes"`
	GeneratedAt           *time.Time        `json:"generatedAt"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

type WorkoutResponse struct {
	ID                     string                 `json:"id"`
	TrainingPlanID         string                 `json:"trainingPlanId"`
	ScheduledDate          string                 `json:"scheduledDate"` // YYYY-MM-DD
	Sequence               int                    `json:"sequence"`
	WorkoutType            string                 `json:"workoutType"`
	Description            string                 `json:"description"`
	DistanceKm             *float64               `json:"distanceKm"`
	TargetPace             *string                `json:"targetPace"`
	Status                 domain.WorkoutStatus   `json:"status"`
	PreRunSleepQuality     *int                   `json:"preRunSleepQuality"`
	PreRunBodyFeel         *int                   `json:"preRunBodyFeel"`
	UserFeedbackDifficulty *int                   `json:"userFeedbackDifficulty"`
	UserFeedbackNotes      *string                `json:"userFeedbackNotes"`
	AdditionalPayload      *domain.WorkoutPayload `json:"additionalPayload"`
	CreatedAt              time.Time              `json:"createdAt"`
	UpdatedAt              time.Time              `json:"updatedAt"`
}

type WeekResponse struct {
	WeekNumber      int               `json:"weekNumber"`
	MicrocycleFocus string            `json:"microcycleFocus"`
	Workouts        []WorkoutResponse `json:"workouts"`
}

type CreatePlanResponse struct {
	Plan        PlanResponse      `json:"plan"`
	Workouts    []WorkoutResponse `json:"workouts"`
	RawResponse json.RawMessage   `json:"rawResponse"`
}

type LatestPlanResponse struct {
	Plan     *PlanResponse     `json:"plan"`
	Workouts []WorkoutResponse `json:"workouts"`
	Weeks    []WeekResponse    `json:"weeks,omitempty"`
}

// --- Workout DTOs ---

type CheckInRequest struct {
	SleepQuality *int                  `json:"sleepQuality"`
	BodyFeel     *int                  `json:"bodyFeel"`
	Status       *domain.WorkoutStatus `json:"status"`
}

type LogRequest struct {
	Difficulty *int                  `json:"difficulty"`
	Notes      *string               `json:"notes"`
	Status     *domain.WorkoutStatus `json:"status"`
}

type WorkoutEnvelope struct {
	Workout WorkoutResponse `json:"workout"`
}

// --- Mapping helpers ---

// MapPlanToResponse converts a domain TrainingPlan to its DTO.
func MapPlanToResponse(p *domain.TrainingPlan) PlanResponse {
	if p == nil {
		return PlanResponse{}
	}
	return PlanResponse{
		ID:                    p.ID,
		UserID:                p.UserID,
		GoalRaceDistance:      p.GoalRaceDistance,
		GoalRaceDate:          p.GoalRaceDate,
		GoalTargetTimeSeconds: p.GoalTargetTimeSeconds,
		GoalNotes:             p.GoalNotes,
		Status:                p.Status,
		AIModel:               p.AIModel,
		PromptContext:         p.PromptContext,
		PlanPayload:           p.PlanPayload,
		ConfidenceScore:       p.ConfidenceScore,
		GenerationNotes:       p.GenerationNotes,
		GeneratedAt:           p.GeneratedAt,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

// MapPlansToResponse drops the prompt context, which is large and only
// useful when looking at a single plan.
func MapPlansToResponse(plans []domain.TrainingPlan) []PlanResponse {
	out := make([]PlanResponse, 0, len(plans))
	for i := range plans {
		r := MapPlanToResponse(&plans[i])
		r.PromptContext = nil
		out = append(out, r)
	}
	return out
}

func MapWorkoutToResponse(w *domain.Workout) WorkoutResponse {
	return WorkoutResponse{
		ID:                     w.ID,
		TrainingPlanID:         w.TrainingPlanID,
		ScheduledDate:          w.ScheduledDate.UTC().Format(domain.DateLayout),
		Sequence:               w.Sequence,
		WorkoutType:            w.WorkoutType,
		Description:            w.Description,
		DistanceKm:             w.DistanceKm,
		TargetPace:             w.TargetPace,
		Status:                 w.Status,
		PreRunSleepQuality:     w.PreRunSleepQuality,
		PreRunBodyFeel:         w.PreRunBodyFeel,
		UserFeedbackDifficulty: w.UserFeedbackDifficulty,
		UserFeedbackNotes:      w.UserFeedbackNotes,
		AdditionalPayload:      w.AdditionalPayload,
		CreatedAt:              w.CreatedAt,
		UpdatedAt:              w.UpdatedAt,
	}
}

// MapWorkoutsToResponse never returns nil so the JSON is [] rather than null.
func MapWorkoutsToResponse(ws []domain.Workout) []WorkoutResponse {
	out := make([]WorkoutResponse, 0, len(ws))
	for i := range ws {
		out = append(out, MapWorkoutToResponse(&ws[i]))
	}
	return out
}

func MapWeeksToResponse(weeks []planparser.WeekGroup) []WeekResponse {
	out := make([]WeekResponse, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, WeekResponse{
			WeekNumber:      w.WeekNumber,
			MicrocycleFocus: w.MicrocycleFocus,
			Workouts:        MapWorkoutsToResponse(w.Workouts),
		})
	}
	return out
}

func MapLatestPlanToResponse(r *service.PlanResult) LatestPlanResponse {
	plan := MapPlanToResponse(r.Plan)
	return LatestPlanResponse{
		Plan:     &plan,
		Workouts: MapWorkoutsToResponse(r.Workouts),
		Weeks:    MapWeeksToResponse(r.Weeks),
	}
}

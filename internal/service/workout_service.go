package service

import (
	"context"
	"errors"
	"fmt"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/logger"
	"pbassistant/backend/internal/repository"
)

// --- Error Definitions ---
var (
	ErrWorkoutNotFound     = errors.New("workout not found")
	ErrWorkoutAccessDenied = errors.New("access denied to this workout")
)

// CheckInInput is the pre-session check-in. Status defaults to unchanged.
type CheckInInput struct {
	SleepQuality *int
	BodyFeel     *int
	Status       *domain.WorkoutStatus
}

// LogInput is the post-session log. A nil Status leaves it unchanged.
type LogInput struct {
	Difficulty *int
	Notes      *string
	Status     *domain.WorkoutStatus
}

// --- Service Interface ---
type WorkoutService interface {
	CheckIn(ctx context.Context, userID, workoutID string, in CheckInInput) (*domain.Workout, error)
	Log(ctx context.Context, userID, workoutID string, in LogInput) (*domain.Workout, error)
}

// --- Service Implementation ---

type workoutService struct {
	plans    repository.TrainingPlanRepository
	workouts repository.WorkoutRepository
	log      *logger.Logger
}

// NewWorkoutService creates a new instance of workoutService.
func NewWorkoutService(plans repository.TrainingPlanRepository, workouts repository.WorkoutRepository, log *logger.Logger) WorkoutService {
	if log == nil {
		log = logger.NewNop()
	}
	return &workoutService{plans: plans, workouts: workouts, log: log.With("service", "workout")}
}

func (s *workoutService) CheckIn(ctx context.Context, userID, workoutID string, in CheckInInput) (*domain.Workout, error) {
	if err := validateRating("sleepQuality", in.SleepQuality); err != nil {
		return nil, err
	}
	if err := validateRating("bodyFeel", in.BodyFeel); err != nil {
		return nil, err
	}
	if err := validateStatus(in.Status); err != nil {
		return nil, err
	}
	update := domain.WorkoutUpdate{
		Status:             in.Status,
		PreRunSleepQuality: in.SleepQuality,
		PreRunBodyFeel:     in.BodyFeel,
	}
	if update.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to check in", domain.ErrInvalidInput)
	}
	return s.update(ctx, userID, workoutID, update)
}

func (s *workoutService) Log(ctx context.Context, userID, workoutID string, in LogInput) (*domain.Workout, error) {
	if err := validateRating("difficulty", in.Difficulty); err != nil {
		return nil, err
	}
	if err := validateStatus(in.Status); err != nil {
		return nil, err
	}
	update := domain.WorkoutUpdate{
		Status:                 in.Status,
		UserFeedbackDifficulty: in.Difficulty,
		UserFeedbackNotes:      in.Notes,
	}
	if update.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to log", domain.ErrInvalidInput)
	}
	return s.update(ctx, userID, workoutID, update)
}

// update checks that the workout belongs to one of userID's plans before
// writing.
func (s *workoutService) update(ctx context.Context, userID, workoutID string, update domain.WorkoutUpdate) (*domain.Workout, error) {
	w, err := s.workouts.GetByID(ctx, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	plan, err := s.plans.GetByID(ctx, w.TrainingPlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	if plan.UserID != userID {
		s.log.Warn("Workout access denied", "workoutID", workoutID, "userID", userID)
		return nil, ErrWorkoutAccessDenied
	}

	updated, err := s.workouts.UpdateFields(ctx, workoutID, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return updated, nil
}

func validateRating(field string, v *int) error {
	if v != nil && (*v < domain.MinRating || *v > domain.MaxRating) {
		return fmt.Errorf("%w: %s must be between %d and %d", domain.ErrInvalidInput, field, domain.MinRating, domain.MaxRating)
	}
	return nil
}

func validateStatus(s *domain.WorkoutStatus) error {
	if s != nil && !s.Valid() {
		return fmt.Errorf("%w: unknown workout status %q", domain.ErrInvalidInput, *s)
	}
	return nil
}

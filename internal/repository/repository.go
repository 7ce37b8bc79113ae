package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pbassistant/backend/internal/domain"
)

// Error constants for repository layer
var (
	ErrNotFound = RepositoryError("not found")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Persistence wraps a driver error so callers can classify it with
// errors.Is(err, domain.ErrPersistence).
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}

// UserRepository is the profile store consumed by the pipeline.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// UpsertIdentity creates the user on first login and refreshes
	// display name, avatar and last login time afterwards.
	UpsertIdentity(ctx context.Context, identity domain.Identity) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error)
}

// TrainingPlanRepository records the plan lifecycle: draft -> completed | failed.
type TrainingPlanRepository interface {
	// CreateDraft assigns ID, status and timestamps to plan and stores it.
	CreateDraft(ctx context.Context, plan *domain.TrainingPlan) error
	MarkCompleted(ctx context.Context, id string, completion domain.PlanCompletion) (*domain.TrainingPlan, error)
	MarkFailed(ctx context.Context, id string, notes string) (*domain.TrainingPlan, error)
	GetByID(ctx context.Context, id string) (*domain.TrainingPlan, error)
	// GetLatestCompleted returns ErrNotFound when the user has no completed plan.
	GetLatestCompleted(ctx context.Context, userID string) (*domain.TrainingPlan, error)
	// ListByUser returns plans newest first, optionally filtered by status.
	ListByUser(ctx context.Context, userID string, statuses ...domain.PlanStatus) ([]domain.TrainingPlan, error)
}

// WorkoutRepository holds the plan-scoped workout sets.
type WorkoutRepository interface {
	// ReplaceAll atomically swaps the plan's workout set for workouts and
	// returns the persisted set in schedule order.
	ReplaceAll(ctx context.Context, planID string, workouts []domain.Workout) ([]domain.Workout, error)
	ListForPlan(ctx context.Context, planID string) ([]domain.Workout, error)
	GetByID(ctx context.Context, id string) (*domain.Workout, error)
	// UpdateFields changes only the check-in / log fields.
	UpdateFields(ctx context.Context, id string, update domain.WorkoutUpdate) (*domain.Workout, error)
}

// --- Helpers shared by the backends ---

// PrepareDraft validates a new plan and fills in the fields every backend sets.
func PrepareDraft(plan *domain.TrainingPlan, now time.Time) error {
	if plan == nil {
		return fmt.Errorf("%w: plan is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(plan.UserID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(plan.GoalRaceDistance) == "" || strings.TrimSpace(plan.GoalRaceDate) == "" {
		return fmt.Errorf("%w: goal race distance and date are required", domain.ErrInvalidInput)
	}
	plan.ID = uuid.NewString()
	plan.Status = domain.PlanStatusDraft
	plan.PlanPayload = nil
	plan.ConfidenceScore = nil
	plan.GeneratedAt = nil
	plan.CreatedAt = now
	plan.UpdatedAt = now
	return nil
}

var lastPlanSeq atomic.Int64

// NextPlanSeq returns the creation sequence for a new plan. Stores order
// plans that share a CreatedAt by it, newest highest. Values follow the wall
// clock in nanoseconds and never repeat or go backwards within a process.
func NextPlanSeq() int64 {
	for {
		last := lastPlanSeq.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if lastPlanSeq.CompareAndSwap(last, next) {
			return next
		}
	}
}

// CheckTransition reports ErrInvalidTransition when a plan in status from may
// not move to status to.
func CheckTransition(id string, from, to domain.PlanStatus) error {
	ok := false
	switch to {
	case domain.PlanStatusCompleted:
		ok = domain.CanComplete(from)
	case domain.PlanStatusFailed:
		ok = domain.CanFail(from)
	}
	if !ok {
		return fmt.Errorf("%w: plan %s is %s, cannot become %s", domain.ErrInvalidTransition, id, from, to)
	}
	return nil
}

// PrepareWorkouts returns copies of workouts bound to planID with fresh IDs.
func PrepareWorkouts(planID string, workouts []domain.Workout, now time.Time) []domain.Workout {
	out := make([]domain.Workout, len(workouts))
	for i, w := range workouts {
		w.ID = uuid.NewString()
		w.TrainingPlanID = planID
		w.ScheduledDate = w.ScheduledDate.UTC()
		if w.Status == "" {
			w.Status = domain.WorkoutStatusScheduled
		}
		w.CreatedAt = now
		w.UpdatedAt = now
		out[i] = w
	}
	return out
}

// SortWorkouts orders workouts by scheduled date, then generation sequence.
func SortWorkouts(workouts []domain.Workout) {
	sort.SliceStable(workouts, func(i, j int) bool {
		a, b := workouts[i], workouts[j]
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			return a.ScheduledDate.Before(b.ScheduledDate)
		}
		return a.Sequence < b.Sequence
	})
}

// MatchesStatus reports whether s is in statuses; an empty filter matches all.
func MatchesStatus(s domain.PlanStatus, statuses []domain.PlanStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

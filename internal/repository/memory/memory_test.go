package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
	"pbassistant/backend/internal/repository/repotest"
)

func TestTrainingPlanRepository(t *testing.T) {
	repotest.RunTrainingPlanRepository(t, func(t *testing.T) repository.TrainingPlanRepository {
		return NewTrainingPlanRepository()
	})
}

func TestWorkoutRepository(t *testing.T) {
	repotest.RunWorkoutRepository(t, func(t *testing.T) repository.WorkoutRepository {
		return NewWorkoutRepository()
	})
}

func TestUserRepository(t *testing.T) {
	repotest.RunUserRepository(t, func(t *testing.T) repository.UserRepository {
		return NewUserRepository()
	})
}

func TestTrainingPlanRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewTrainingPlanRepository()

	notes := "first race"
	plan := &domain.TrainingPlan{
		UserID:           "u-1",
		GoalRaceDistance: "10K",
		GoalRaceDate:     "2025-04-13",
		GoalNotes:        &notes,
		PromptContext:    json.RawMessage(`{"goal":{}}`),
	}
	require.NoError(t, repo.CreateDraft(ctx, plan))
	plan.PromptContext[2] = 'X'
	*plan.GoalNotes = "changed"

	score := 0.8
	completed, err := repo.MarkCompleted(ctx, plan.ID, domain.PlanCompletion{
		Payload:         json.RawMessage(`{"weeks":[]}`),
		ConfidenceScore: &score,
		GeneratedAt:     time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	score = 0.1
	completed.PlanPayload[2] = 'X'
	*completed.ConfidenceScore = 0.2
	*completed.GeneratedAt = time.Time{}

	listed, err := repo.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].PromptContext[2] = 'Y'

	got, err := repo.GetByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"goal":{}}`, string(got.PromptContext))
	assert.JSONEq(t, `{"weeks":[]}`, string(got.PlanPayload))
	require.NotNil(t, got.GoalNotes)
	assert.Equal(t, "first race", *got.GoalNotes)
	require.NotNil(t, got.ConfidenceScore)
	assert.Equal(t, 0.8, *got.ConfidenceScore)
	require.NotNil(t, got.GeneratedAt)
	assert.Equal(t, time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC), *got.GeneratedAt)
}

// Package repotest holds behaviour tests shared by every repository backend.
package repotest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
)

func strPtr(s string) *string   { return &s }
func intPtr(i int) *int         { return &i }
func f64Ptr(f float64) *float64 { return &f }

func statusPtr(s domain.WorkoutStatus) *domain.WorkoutStatus { return &s }

func draft(userID string) *domain.TrainingPlan {
	return &domain.TrainingPlan{
		UserID:           userID,
		GoalRaceDistance: "Marathon",
		GoalRaceDate:     "2025-04-13",
		AIModel:          "deepseek-chat",
		PromptContext:    json.RawMessage(`{"goal":{"raceDistance":"Marathon"}}`),
	}
}

func completion(confidence float64) domain.PlanCompletion {
	return domain.PlanCompletion{
		Payload:         json.RawMessage(`{"planSummary":{"totalWeeks":4},"weeks":[]}`),
		ConfidenceScore: f64Ptr(confidence),
		GeneratedAt:     time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
		Notes:           strPtr("mock mode"),
	}
}

// RunTrainingPlanRepository exercises the plan lifecycle contract.
func RunTrainingPlanRepository(t *testing.T, newRepo func(t *testing.T) repository.TrainingPlanRepository) {
	ctx := context.Background()

	t.Run("CreateDraftValidates", func(t *testing.T) {
		repo := newRepo(t)
		for _, p := range []*domain.TrainingPlan{
			nil,
			{GoalRaceDistance: "10K", GoalRaceDate: "2025-04-13"},
			{UserID: "u", GoalRaceDate: "2025-04-13"},
			{UserID: "u", GoalRaceDistance: "10K"},
		} {
			assert.ErrorIs(t, repo.CreateDraft(ctx, p), domain.ErrInvalidInput)
		}
	})

	t.Run("DraftThenCompleted", func(t *testing.T) {
		repo := newRepo(t)
		p := draft("user-1")
		require.NoError(t, repo.CreateDraft(ctx, p))
		require.NotEmpty(t, p.ID)
		assert.Equal(t, domain.PlanStatusDraft, p.Status)

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PlanStatusDraft, got.Status)
		assert.Empty(t, got.PlanPayload)
		assert.Nil(t, got.GeneratedAt)
		assert.JSONEq(t, string(p.PromptContext), string(got.PromptContext))

		done, err := repo.MarkCompleted(ctx, p.ID, completion(0.72))
		require.NoError(t, err)
		assert.Equal(t, domain.PlanStatusCompleted, done.Status)

		got, err = repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PlanStatusCompleted, got.Status)
		assert.JSONEq(t, `{"planSummary":{"totalWeeks":4},"weeks":[]}`, string(got.PlanPayload))
		require.NotNil(t, got.ConfidenceScore)
		assert.InDelta(t, 0.72, *got.ConfidenceScore, 1e-9)
		require.NotNil(t, got.GeneratedAt)
		assert.True(t, got.GeneratedAt.Equal(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)))
		assert.Equal(t, "mock mode", *got.GenerationNotes)
		assert.Equal(t, "user-1", got.UserID)

		// Last write wins on re-completion.
		_, err = repo.MarkCompleted(ctx, p.ID, completion(0.5))
		require.NoError(t, err)
		got, err = repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, *got.ConfidenceScore, 1e-9)

		_, err = repo.MarkFailed(ctx, p.ID, "too late")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("DraftThenFailed", func(t *testing.T) {
		repo := newRepo(t)
		p := draft("user-1")
		require.NoError(t, repo.CreateDraft(ctx, p))

		failed, err := repo.MarkFailed(ctx, p.ID, "provider returned 500")
		require.NoError(t, err)
		assert.Equal(t, domain.PlanStatusFailed, failed.Status)

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PlanStatusFailed, got.Status)
		assert.Equal(t, "provider returned 500", *got.GenerationNotes)
		assert.Empty(t, got.PlanPayload)
		assert.Nil(t, got.GeneratedAt)

		_, err = repo.MarkCompleted(ctx, p.ID, completion(0.7))
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("UnknownPlan", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = repo.MarkCompleted(ctx, "missing", completion(0.7))
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = repo.MarkFailed(ctx, "missing", "x")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("LatestCompleted", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetLatestCompleted(ctx, "user-1")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		older := draft("user-1")
		require.NoError(t, repo.CreateDraft(ctx, older))
		_, err = repo.MarkCompleted(ctx, older.ID, completion(0.6))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		newer := draft("user-1")
		require.NoError(t, repo.CreateDraft(ctx, newer))
		_, err = repo.MarkCompleted(ctx, newer.ID, completion(0.8))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		// A newer failed plan and another user's plan never count.
		failed := draft("user-1")
		require.NoError(t, repo.CreateDraft(ctx, failed))
		_, err = repo.MarkFailed(ctx, failed.ID, "boom")
		require.NoError(t, err)
		other := draft("user-2")
		require.NoError(t, repo.CreateDraft(ctx, other))
		_, err = repo.MarkCompleted(ctx, other.ID, completion(0.9))
		require.NoError(t, err)

		latest, err := repo.GetLatestCompleted(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, newer.ID, latest.ID)

		again, err := repo.GetLatestCompleted(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, latest, again, "latest read is idempotent")

		all, err := repo.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{failed.ID, newer.ID, older.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

		completed, err := repo.ListByUser(ctx, "user-1", domain.PlanStatusCompleted)
		require.NoError(t, err)
		assert.Len(t, completed, 2)

		none, err := repo.ListByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func sampleWorkouts(n int, start time.Time) []domain.Workout {
	out := make([]domain.Workout, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Workout{
			ScheduledDate: start.AddDate(0, 0, i*2),
			Sequence:      i,
			WorkoutType:   fmt.Sprintf("Run %d", i),
			Description:   "easy",
			DistanceKm:    f64Ptr(6 + float64(i)),
			TargetPace:    strPtr("5:30 min/km"),
			Status:        domain.WorkoutStatusScheduled,
			AdditionalPayload: &domain.WorkoutPayload{
				Effort:          strPtr("Easy"),
				WeekNumber:      1 + i/4,
				MicrocycleFocus: "Base",
			},
		})
	}
	return out
}

// RunWorkoutRepository exercises replace/list/update semantics.
func RunWorkoutRepository(t *testing.T, newRepo func(t *testing.T) repository.WorkoutRepository) {
	ctx := context.Background()
	start := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)

	t.Run("ReplaceAllOrdersAndAssignsIDs", func(t *testing.T) {
		repo := newRepo(t)
		in := sampleWorkouts(4, start)
		// Same date as the first, later sequence; input is shuffled.
		extra := in[0]
		extra.Sequence = 9
		extra.WorkoutType = "Strides"
		shuffled := []domain.Workout{in[3], extra, in[1], in[0], in[2]}

		saved, err := repo.ReplaceAll(ctx, "plan-1", shuffled)
		require.NoError(t, err)
		require.Len(t, saved, 5)
		for _, w := range saved {
			assert.NotEmpty(t, w.ID)
			assert.Equal(t, "plan-1", w.TrainingPlanID)
		}

		listed, err := repo.ListForPlan(ctx, "plan-1")
		require.NoError(t, err)
		require.Len(t, listed, 5)
		types := make([]string, 0, len(listed))
		for i, w := range listed {
			types = append(types, w.WorkoutType)
			assert.Equal(t, saved[i].ID, w.ID)
		}
		assert.Equal(t, []string{"Run 0", "Strides", "Run 1", "Run 2", "Run 3"}, types)

		first := listed[0]
		assert.True(t, first.ScheduledDate.Equal(start), "got %s", first.ScheduledDate)
		assert.InDelta(t, 6.0, *first.DistanceKm, 1e-9)
		require.NotNil(t, first.AdditionalPayload)
		assert.Equal(t, 1, first.AdditionalPayload.WeekNumber)
		assert.Equal(t, "Base", first.AdditionalPayload.MicrocycleFocus)
		assert.Equal(t, "Easy", *first.AdditionalPayload.Effort)
	})

	t.Run("ReplaceAllSupersedesPreviousSet", func(t *testing.T) {
		repo := newRepo(t)
		old, err := repo.ReplaceAll(ctx, "plan-1", sampleWorkouts(4, start))
		require.NoError(t, err)
		_, err = repo.ReplaceAll(ctx, "plan-2", sampleWorkouts(2, start))
		require.NoError(t, err)

		next, err := repo.ReplaceAll(ctx, "plan-1", sampleWorkouts(3, start.AddDate(0, 0, 7)))
		require.NoError(t, err)
		require.Len(t, next, 3)

		listed, err := repo.ListForPlan(ctx, "plan-1")
		require.NoError(t, err)
		assert.Len(t, listed, 3)
		_, err = repo.GetByID(ctx, old[0].ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		other, err := repo.ListForPlan(ctx, "plan-2")
		require.NoError(t, err)
		assert.Len(t, other, 2, "other plans are untouched")

		empty, err := repo.ListForPlan(ctx, "plan-unknown")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("UpdateFieldsTouchesOnlyFeedback", func(t *testing.T) {
		repo := newRepo(t)
		saved, err := repo.ReplaceAll(ctx, "plan-1", sampleWorkouts(2, start))
		require.NoError(t, err)
		target := saved[0]

		updated, err := repo.UpdateFields(ctx, target.ID, domain.WorkoutUpdate{
			PreRunSleepQuality: intPtr(7),
			PreRunBodyFeel:     intPtr(6),
		})
		require.NoError(t, err)
		assert.Equal(t, 7, *updated.PreRunSleepQuality)

		updated, err = repo.UpdateFields(ctx, target.ID, domain.WorkoutUpdate{
			Status:                 statusPtr(domain.WorkoutStatusCompleted),
			UserFeedbackDifficulty: intPtr(8),
			UserFeedbackNotes:      strPtr("windy"),
		})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.WorkoutStatusCompleted, got.Status)
		assert.Equal(t, 7, *got.PreRunSleepQuality)
		assert.Equal(t, 6, *got.PreRunBodyFeel)
		assert.Equal(t, 8, *got.UserFeedbackDifficulty)
		assert.Equal(t, "windy", *got.UserFeedbackNotes)
		assert.Equal(t, target.WorkoutType, got.WorkoutType)
		assert.True(t, target.ScheduledDate.Equal(got.ScheduledDate))
		assert.Equal(t, updated.ID, got.ID)

		_, err = repo.UpdateFields(ctx, "missing", domain.WorkoutUpdate{PreRunBodyFeel: intPtr(3)})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("AtomicReplaceUnderConcurrentReads", func(t *testing.T) {
		repo := newRepo(t)
		small, large := sampleWorkouts(3, start), sampleWorkouts(5, start)
		_, err := repo.ReplaceAll(ctx, "plan-1", small)
		require.NoError(t, err)

		done := make(chan struct{})
		var wg sync.WaitGroup
		var mu sync.Mutex
		seen := map[int]int{}
		var readErr error

		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-done:
						return
					default:
					}
					ws, err := repo.ListForPlan(ctx, "plan-1")
					mu.Lock()
					if err != nil && readErr == nil {
						readErr = err
					}
					seen[len(ws)]++
					mu.Unlock()
				}
			}()
		}

		for i := 0; i < 40; i++ {
			set := small
			if i%2 == 0 {
				set = large
			}
			_, err := repo.ReplaceAll(ctx, "plan-1", set)
			require.NoError(t, err)
		}
		close(done)
		wg.Wait()

		require.NoError(t, readErr)
		for n := range seen {
			assert.Contains(t, []int{3, 5}, n, "observed a partially replaced set of %d", n)
		}
	})
}

// RunUserRepository exercises identity upsert and profile updates.
func RunUserRepository(t *testing.T, newRepo func(t *testing.T) repository.UserRepository) {
	ctx := context.Background()

	t.Run("UpsertIdentity", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.UpsertIdentity(ctx, domain.Identity{Provider: "wechat"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		first, err := repo.UpsertIdentity(ctx, domain.Identity{Provider: "wechat", ProviderUserID: "openid-1", DisplayName: strPtr("Li")})
		require.NoError(t, err)
		require.NotEmpty(t, first.ID)
		require.NotNil(t, first.LastLoginAt)

		second, err := repo.UpsertIdentity(ctx, domain.Identity{Provider: "wechat", ProviderUserID: "openid-1", DisplayName: strPtr("Li Wei")})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Li Wei", *second.DisplayName)

		got, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "wechat", got.Provider)
		assert.Equal(t, "openid-1", got.ProviderUserID)
		assert.Equal(t, "Li Wei", *got.DisplayName)

		third, err := repo.UpsertIdentity(ctx, domain.Identity{Provider: "wechat", ProviderUserID: "openid-2"})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, third.ID)
	})

	t.Run("UpdateProfile", func(t *testing.T) {
		repo := newRepo(t)
		u, err := repo.UpsertIdentity(ctx, domain.Identity{Provider: "dev", ProviderUserID: "runner"})
		require.NoError(t, err)

		updated, err := repo.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{
			Birthdate:          strPtr("1990-01-01"),
			WeeklyTrainingDays: intPtr(5),
			WeightKg:           f64Ptr(68.5),
		})
		require.NoError(t, err)
		assert.Equal(t, 5, *updated.WeeklyTrainingDays)

		updated, err = repo.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{Timezone: strPtr("Asia/Shanghai")})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "1990-01-01", *got.Birthdate)
		assert.Equal(t, 5, *got.WeeklyTrainingDays)
		assert.InDelta(t, 68.5, *got.WeightKg, 1e-9)
		assert.Equal(t, "Asia/Shanghai", *got.Timezone)
		assert.Equal(t, updated.ID, got.ID)

		_, err = repo.UpdateProfile(ctx, "missing", domain.ProfileUpdate{Timezone: strPtr("UTC")})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

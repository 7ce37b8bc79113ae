package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
	"pbassistant/backend/internal/repository/repotest"
)

// testDB opens a private in-memory SQLite database with the schema migrated.
// A single connection serialises access the way a row lock would.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func TestTrainingPlanRepository(t *testing.T) {
	repotest.RunTrainingPlanRepository(t, func(t *testing.T) repository.TrainingPlanRepository {
		return NewTrainingPlanRepository(testDB(t))
	})
}

func TestWorkoutRepository(t *testing.T) {
	repotest.RunWorkoutRepository(t, func(t *testing.T) repository.WorkoutRepository {
		return NewWorkoutRepository(testDB(t))
	})
}

func TestUserRepository(t *testing.T) {
	repotest.RunUserRepository(t, func(t *testing.T) repository.UserRepository {
		return NewUserRepository(testDB(t))
	})
}

func TestReplaceAllRollsBackOnInsertFailure(t *testing.T) {
	db := testDB(t)
	repo := NewWorkoutRepository(db)
	ctx := context.Background()
	start := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)

	first, err := repo.ReplaceAll(ctx, "plan-1", []domain.Workout{
		{ScheduledDate: start, WorkoutType: "Easy Run"},
		{ScheduledDate: start.AddDate(0, 0, 2), WorkoutType: "Long Run", Sequence: 1},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Fail every insert; the delete that already ran in the same
	// transaction must roll back and leave the previous set in place.
	cb := "test:break_insert"
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(cb, func(tx *gorm.DB) {
		_ = tx.AddError(assert.AnError)
	}))
	t.Cleanup(func() { _ = db.Callback().Create().Remove(cb) })

	_, err = repo.ReplaceAll(ctx, "plan-1", []domain.Workout{{ScheduledDate: start, WorkoutType: "Tempo"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	listed, err := repo.ListForPlan(ctx, "plan-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, first[0].ID, listed[0].ID)
}

func TestPlansSharingCreatedAtOrderByInsertion(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	createdAt := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	repo := &trainingPlanRepository{db: db, now: func() time.Time { return createdAt }}

	var ids []string
	for i := 0; i < 5; i++ {
		plan := &domain.TrainingPlan{UserID: "u-1", GoalRaceDistance: "10K", GoalRaceDate: "2025-04-13"}
		require.NoError(t, repo.CreateDraft(ctx, plan))
		_, err := repo.MarkCompleted(ctx, plan.ID, domain.PlanCompletion{
			Payload:     []byte(`{"weeks":[]}`),
			GeneratedAt: createdAt,
		})
		require.NoError(t, err)
		ids = append(ids, plan.ID)
	}

	latest, err := repo.GetLatestCompleted(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, ids[4], latest.ID)

	listed, err := repo.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, listed, 5)
	for i, p := range listed {
		assert.Equal(t, ids[4-i], p.ID)
		assert.True(t, createdAt.Equal(p.CreatedAt))
	}
}

func TestPlanTieBreakIgnoresIDOrder(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	createdAt := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	rows := []trainingPlanRow{
		{ID: "ffffffff-0000-0000-0000-000000000000", Seq: 1},
		{ID: "00000000-0000-0000-0000-000000000000", Seq: 2},
	}
	for i := range rows {
		rows[i].UserID = "u-1"
		rows[i].GoalRaceDistance = "10K"
		rows[i].GoalRaceDate = "2025-04-13"
		rows[i].Status = string(domain.PlanStatusCompleted)
		rows[i].CreatedAt = createdAt
		rows[i].UpdatedAt = createdAt
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	latest, err := NewTrainingPlanRepository(db).GetLatestCompleted(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, rows[1].ID, latest.ID)
}

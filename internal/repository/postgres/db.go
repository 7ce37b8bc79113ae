// Package postgres implements the repositories on a relational database via
// gorm. Production runs on PostgreSQL; the tests run the same code on SQLite.
package postgres

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Open connects to PostgreSQL using dsn.
func Open(dsn string) (*gorm.DB, error) {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates the users, training_plans and workouts tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRow{}, &trainingPlanRow{}, &workoutRow{})
}

// --- Row models ---

type userRow struct {
	ID             string `gorm:"column:id;type:varchar(36);primaryKey"`
	Provider       string `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:idx_users_identity,priority:1"`
	ProviderUserID string `gorm:"column:provider_user_id;type:varchar(128);not null;uniqueIndex:idx_users_identity,priority:2"`

	DisplayName *string `gorm:"column:display_name"`
	AvatarURL   *string `gorm:"column:avatar_url"`
	Gender      *string `gorm:"column:gender"`
	Birthdate   *string `gorm:"column:birthdate"`

	HeightCm           *float64 `gorm:"column:height_cm"`
	WeightKg           *float64 `gorm:"column:weight_kg"`
	WeeklyTrainingDays *int     `gorm:"column:weekly_training_days"`

	BestRaceDistance    *string `gorm:"column:best_race_distance"`
	BestRaceTimeSeconds *int    `gorm:"column:best_race_time_seconds"`
	Timezone            *string `gorm:"column:timezone"`

	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null"`
	LastLoginAt *time.Time `gorm:"column:last_login_at"`
}

func (userRow) TableName() string { return "users" }

type trainingPlanRow struct {
	ID     string `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID string `gorm:"column:user_id;type:varchar(36);not null;index:idx_training_plans_user_created,priority:1"`

	GoalRaceDistance      string  `gorm:"column:goal_race_distance;not null"`
	GoalRaceDate          string  `gorm:"column:goal_race_date;type:varchar(10);not null"`
	GoalTargetTimeSeconds *int    `gorm:"column:goal_target_time_seconds"`
	GoalNotes             *string `gorm:"column:goal_notes"`

	Status          string         `gorm:"column:status;type:varchar(16);not null;index"`
	AIModel         string         `gorm:"column:ai_model"`
	PromptContext   datatypes.JSON `gorm:"column:prompt_context"`
	PlanPayload     datatypes.JSON `gorm:"column:plan_payload"`
	ConfidenceScore *float64       `gorm:"column:confidence_score"`
	GenerationNotes *string        `gorm:"column:generation_notes"`

	GeneratedAt *time.Time `gorm:"column:generated_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;index:idx_training_plans_user_created,priority:2"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null"`
	// Seq orders plans that share a created_at, newest highest.
	Seq int64 `gorm:"column:seq;not null;default:0;index:idx_training_plans_user_created,priority:3"`
}

func (trainingPlanRow) TableName() string { return "training_plans" }

type workoutRow struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	TrainingPlanID string    `gorm:"column:training_plan_id;type:varchar(36);not null;index:idx_workouts_plan_schedule,priority:1"`
	ScheduledDate  time.Time `gorm:"column:scheduled_date;type:date;not null;index:idx_workouts_plan_schedule,priority:2"`
	Sequence       int       `gorm:"column:sequence;not null;default:0"`
	WorkoutType    string    `gorm:"column:workout_type;not null"`
	Description    string    `gorm:"column:description;type:text"`
	DistanceKm     *float64  `gorm:"column:distance_km"`
	TargetPace     *string   `gorm:"column:target_pace"`
	Status         string    `gorm:"column:status;type:varchar(16);not null;default:scheduled"`

	PreRunSleepQuality     *int    `gorm:"column:pre_run_sleep_quality"`
	PreRunBodyFeel         *int    `gorm:"column:pre_run_body_feel"`
	UserFeedbackDifficulty *int    `gorm:"column:user_feedback_difficulty"`
	UserFeedbackNotes      *string `gorm:"column:user_feedback_notes"`

	AdditionalPayload datatypes.JSON `gorm:"column:additional_payload"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;not null"`
}

func (workoutRow) TableName() string { return "workouts" }

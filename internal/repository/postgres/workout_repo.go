package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
)

type workoutRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewWorkoutRepository creates a gorm-backed WorkoutRepository.
func NewWorkoutRepository(db *gorm.DB) repository.WorkoutRepository {
	return &workoutRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ReplaceAll deletes and inserts in one transaction so readers see either
// the previous set or the new one.
func (r *workoutRepository) ReplaceAll(ctx context.Context, planID string, workouts []domain.Workout) ([]domain.Workout, error) {
	prepared := repository.PrepareWorkouts(planID, workouts, r.now())
	rows := make([]workoutRow, 0, len(prepared))
	for i := range prepared {
		row, err := workoutToRow(&prepared[i])
		if err != nil {
			return nil, repository.Persistence("encode workout", err)
		}
		rows = append(rows, row)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("training_plan_id = ?", planID).Delete(&workoutRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, 100).Error
	})
	if err != nil {
		return nil, repository.Persistence("replace workouts", err)
	}

	repository.SortWorkouts(prepared)
	return prepared, nil
}

func (r *workoutRepository) ListForPlan(ctx context.Context, planID string) ([]domain.Workout, error) {
	var rows []workoutRow
	err := r.db.WithContext(ctx).
		Where("training_plan_id = ?", planID).
		Order("scheduled_date ASC").
		Order("sequence ASC").
		Find(&rows).Error
	if err != nil {
		return nil, repository.Persistence("list workouts", err)
	}
	out := make([]domain.Workout, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToWorkout(row))
	}
	return out, nil
}

func (r *workoutRepository) GetByID(ctx context.Context, id string) (*domain.Workout, error) {
	var row workoutRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Persistence("get workout", err)
	}
	w := rowToWorkout(row)
	return &w, nil
}

// UpdateFields only ever writes these columns:
// status, pre_run_sleep_quality, pre_run_body_feel, user_feedback_difficulty, user_feedback_notes.
func (r *workoutRepository) UpdateFields(ctx context.Context, id string, u domain.WorkoutUpdate) (*domain.Workout, error) {
	values := map[string]interface{}{"updated_at": r.now()}
	if u.Status != nil {
		values["status"] = string(*u.Status)
	}
	if u.PreRunSleepQuality != nil {
		values["pre_run_sleep_quality"] = *u.PreRunSleepQuality
	}
	if u.PreRunBodyFeel != nil {
		values["pre_run_body_feel"] = *u.PreRunBodyFeel
	}
	if u.UserFeedbackDifficulty != nil {
		values["user_feedback_difficulty"] = *u.UserFeedbackDifficulty
	}
	if u.UserFeedbackNotes != nil {
		values["user_feedback_notes"] = *u.UserFeedbackNotes
	}

	res := r.db.WithContext(ctx).Model(&workoutRow{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return nil, repository.Persistence("update workout", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func workoutToRow(w *domain.Workout) (workoutRow, error) {
	row := workoutRow{
		ID:                     w.ID,
		TrainingPlanID:         w.TrainingPlanID,
		ScheduledDate:          w.ScheduledDate,
		Sequence:               w.Sequence,
		WorkoutType:            w.WorkoutType,
		Description:            w.Description,
		DistanceKm:             w.DistanceKm,
		TargetPace:             w.TargetPace,
		Status:                 string(w.Status),
		PreRunSleepQuality:     w.PreRunSleepQuality,
		PreRunBodyFeel:         w.PreRunBodyFeel,
		UserFeedbackDifficulty: w.UserFeedbackDifficulty,
		UserFeedbackNotes:      w.UserFeedbackNotes,
		CreatedAt:              w.CreatedAt,
		UpdatedAt:              w.UpdatedAt,
	}
	if w.AdditionalPayload != nil {
		b, err := json.Marshal(w.AdditionalPayload)
		if err != nil {
			return row, err
		}
		row.AdditionalPayload = datatypes.JSON(b)
	}
	return row, nil
}

func rowToWorkout(row workoutRow) domain.Workout {
	d := row.ScheduledDate
	w := domain.Workout{
		ID:                     row.ID,
		TrainingPlanID:         row.TrainingPlanID,
		ScheduledDate:          time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		Sequence:               row.Sequence,
		WorkoutType:            row.WorkoutType,
		Description:            row.Description,
		DistanceKm:             row.DistanceKm,
		TargetPace:             row.TargetPace,
		Status:                 domain.WorkoutStatus(row.Status),
		PreRunSleepQuality:     row.PreRunSleepQuality,
		PreRunBodyFeel:         row.PreRunBodyFeel,
		UserFeedbackDifficulty: row.UserFeedbackDifficulty,
		UserFeedbackNotes:      row.UserFeedbackNotes,
		CreatedAt:              row.CreatedAt.UTC(),
		UpdatedAt:              row.UpdatedAt.UTC(),
	}
	if len(row.AdditionalPayload) > 0 {
		var p domain.WorkoutPayload
		// Rows are only written by workoutToRow; a payload that fails to
		// decode is dropped rather than failing the read.
		if err := json.Unmarshal(row.AdditionalPayload, &p); err == nil {
			w.AdditionalPayload = &p
		}
	}
	return w
}

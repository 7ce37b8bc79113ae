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

type trainingPlanRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTrainingPlanRepository creates a gorm-backed TrainingPlanRepository.
func NewTrainingPlanRepository(db *gorm.DB) repository.TrainingPlanRepository {
	return &trainingPlanRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *trainingPlanRepository) CreateDraft(ctx context.Context, plan *domain.TrainingPlan) error {
	if err := repository.PrepareDraft(plan, r.now()); err != nil {
		return err
	}
	row := planToRow(plan)
	row.Seq = repository.NextPlanSeq()
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return repository.Persistence("create draft", err)
	}
	return nil
}

func (r *trainingPlanRepository) MarkCompleted(ctx context.Context, id string, c domain.PlanCompletion) (*domain.TrainingPlan, error) {
	generatedAt := c.GeneratedAt.UTC()
	return r.transition(ctx, id, domain.PlanStatusCompleted, map[string]interface{}{
		"status":           string(domain.PlanStatusCompleted),
		"plan_payload":     datatypes.JSON(c.Payload),
		"confidence_score": c.ConfidenceScore,
		"generation_notes": c.Notes,
		"generated_at":     &generatedAt,
		"updated_at":       r.now(),
	})
}

func (r *trainingPlanRepository) MarkFailed(ctx context.Context, id string, notes string) (*domain.TrainingPlan, error) {
	return r.transition(ctx, id, domain.PlanStatusFailed, map[string]interface{}{
		"status":           string(domain.PlanStatusFailed),
		"plan_payload":     nil,
		"generation_notes": notes,
		"updated_at":       r.now(),
	})
}

// transition applies a guarded status update. The WHERE clause on the
// allowed source statuses keeps concurrent writers from racing past the
// state machine.
func (r *trainingPlanRepository) transition(ctx context.Context, id string, to domain.PlanStatus, values map[string]interface{}) (*domain.TrainingPlan, error) {
	from := []string{string(domain.PlanStatusDraft), string(to)}
	res := r.db.WithContext(ctx).Model(&trainingPlanRow{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return nil, repository.Persistence("update plan status", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, repository.CheckTransition(id, current.Status, to)
	}
	return r.GetByID(ctx, id)
}

func (r *trainingPlanRepository) GetByID(ctx context.Context, id string) (*domain.TrainingPlan, error) {
	var row trainingPlanRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Persistence("get plan", err)
	}
	return rowToPlan(row), nil
}

func (r *trainingPlanRepository) GetLatestCompleted(ctx context.Context, userID string) (*domain.TrainingPlan, error) {
	var row trainingPlanRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(domain.PlanStatusCompleted)).
		Order("created_at DESC").
		Order("seq DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Persistence("get latest plan", err)
	}
	return rowToPlan(row), nil
}

func (r *trainingPlanRepository) ListByUser(ctx context.Context, userID string, statuses ...domain.PlanStatus) ([]domain.TrainingPlan, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		s := make([]string, len(statuses))
		for i, st := range statuses {
			s[i] = string(st)
		}
		q = q.Where("status IN ?", s)
	}
	var rows []trainingPlanRow
	if err := q.Order("created_at DESC").Order("seq DESC").Find(&rows).Error; err != nil {
		return nil, repository.Persistence("list plans", err)
	}
	out := make([]domain.TrainingPlan, 0, len(rows))
	for _, row := range rows {
		out = append(out, *rowToPlan(row))
	}
	return out, nil
}

func planToRow(p *domain.TrainingPlan) trainingPlanRow {
	return trainingPlanRow{
		ID:                    p.ID,
		UserID:                p.UserID,
		GoalRaceDistance:      p.GoalRaceDistance,
		GoalRaceDate:          p.GoalRaceDate,
		GoalTargetTimeSeconds: p.GoalTargetTimeSeconds,
		GoalNotes:             p.GoalNotes,
		Status:                string(p.Status),
		AIModel:               p.AIModel,
		PromptContext:         datatypes.JSON(p.PromptContext),
		PlanPayload:           datatypes.JSON(p.PlanPayload),
		ConfidenceScore:       p.ConfidenceScore,
		GenerationNotes:       p.GenerationNotes,
		GeneratedAt:           p.GeneratedAt,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func rowToPlan(row trainingPlanRow) *domain.TrainingPlan {
	p := &domain.TrainingPlan{
		ID:                    row.ID,
		UserID:                row.UserID,
		GoalRaceDistance:      row.GoalRaceDistance,
		GoalRaceDate:          row.GoalRaceDate,
		GoalTargetTimeSeconds: row.GoalTargetTimeSeconds,
		GoalNotes:             row.GoalNotes,
		Status:                domain.PlanStatus(row.Status),
		AIModel:               row.AIModel,
		ConfidenceScore:       row.ConfidenceScore,
		GenerationNotes:       row.GenerationNotes,
		CreatedAt:             row.CreatedAt.UTC(),
		UpdatedAt:             row.UpdatedAt.UTC(),
	}
	if len(row.PromptContext) > 0 {
		p.PromptContext = json.RawMessage(row.PromptContext)
	}
	if len(row.PlanPayload) > 0 && string(row.PlanPayload) != "null" {
		p.PlanPayload = json.RawMessage(row.PlanPayload)
	}
	if row.GeneratedAt != nil {
		t := row.GeneratedAt.UTC()
		p.GeneratedAt = &t
	}
	return p
}

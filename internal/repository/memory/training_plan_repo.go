// Package memory implements the repositories in process memory. It backs
// local development when no database is configured; state lives only as
// long as the repository instance.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
)

type planRecord struct {
	plan domain.TrainingPlan
	seq  uint64 // insertion order, tie-break for equal CreatedAt
}

// TrainingPlanRepository implements repository.TrainingPlanRepository
type TrainingPlanRepository struct {
	mu    sync.RWMutex
	plans map[string]*planRecord
	seq   uint64
	now   func() time.Time
}

func NewTrainingPlanRepository() *TrainingPlanRepository {
	return &TrainingPlanRepository{
		plans: make(map[string]*planRecord),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *TrainingPlanRepository) CreateDraft(ctx context.Context, plan *domain.TrainingPlan) error {
	if err := repository.PrepareDraft(plan, r.now()); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.plans[plan.ID] = &planRecord{plan: clonePlan(*plan), seq: r.seq}
	return nil
}

func (r *TrainingPlanRepository) MarkCompleted(ctx context.Context, id string, c domain.PlanCompletion) (*domain.TrainingPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := repository.CheckTransition(id, rec.plan.Status, domain.PlanStatusCompleted); err != nil {
		return nil, err
	}
	generatedAt := c.GeneratedAt.UTC()
	rec.plan.Status = domain.PlanStatusCompleted
	rec.plan.PlanPayload = cloneBytes(c.Payload)
	rec.plan.ConfidenceScore = clonePtr(c.ConfidenceScore)
	rec.plan.GenerationNotes = clonePtr(c.Notes)
	rec.plan.GeneratedAt = &generatedAt
	rec.plan.UpdatedAt = r.now()
	out := clonePlan(rec.plan)
	return &out, nil
}

func (r *TrainingPlanRepository) MarkFailed(ctx context.Context, id string, notes string) (*domain.TrainingPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := repository.CheckTransition(id, rec.plan.Status, domain.PlanStatusFailed); err != nil {
		return nil, err
	}
	rec.plan.Status = domain.PlanStatusFailed
	rec.plan.PlanPayload = nil
	rec.plan.GenerationNotes = &notes
	rec.plan.UpdatedAt = r.now()
	out := clonePlan(rec.plan)
	return &out, nil
}

func (r *TrainingPlanRepository) GetByID(ctx context.Context, id string) (*domain.TrainingPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := clonePlan(rec.plan)
	return &out, nil
}

func (r *TrainingPlanRepository) GetLatestCompleted(ctx context.Context, userID string) (*domain.TrainingPlan, error) {
	plans := r.listSorted(userID, []domain.PlanStatus{domain.PlanStatusCompleted})
	if len(plans) == 0 {
		return nil, repository.ErrNotFound
	}
	return &plans[0], nil
}

func (r *TrainingPlanRepository) ListByUser(ctx context.Context, userID string, statuses ...domain.PlanStatus) ([]domain.TrainingPlan, error) {
	return r.listSorted(userID, statuses), nil
}

func (r *TrainingPlanRepository) listSorted(userID string, statuses []domain.PlanStatus) []domain.TrainingPlan {
	r.mu.RLock()
	recs := make([]*planRecord, 0)
	for _, rec := range r.plans {
		if rec.plan.UserID == userID && repository.MatchesStatus(rec.plan.Status, statuses) {
			recs = append(recs, rec)
		}
	}
	out := make([]domain.TrainingPlan, 0, len(recs))
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.plan.CreatedAt.Equal(b.plan.CreatedAt) {
			return a.plan.CreatedAt.After(b.plan.CreatedAt)
		}
		return a.seq > b.seq
	})
	for _, rec := range recs {
		out = append(out, clonePlan(rec.plan))
	}
	r.mu.RUnlock()
	return out
}

// clonePlan copies p so that no slice or pointer is shared with the store.
func clonePlan(p domain.TrainingPlan) domain.TrainingPlan {
	p.GoalTargetTimeSeconds = clonePtr(p.GoalTargetTimeSeconds)
	p.GoalNotes = clonePtr(p.GoalNotes)
	p.PromptContext = cloneBytes(p.PromptContext)
	p.PlanPayload = cloneBytes(p.PlanPayload)
	p.ConfidenceScore = clonePtr(p.ConfidenceScore)
	p.GenerationNotes = clonePtr(p.GenerationNotes)
	p.GeneratedAt = clonePtr(p.GeneratedAt)
	return p
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

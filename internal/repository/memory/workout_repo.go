package memory

import (
	"context"
	"sync"
	"time"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
)

// WorkoutRepository implements repository.WorkoutRepository.
// A plan's set is a slice that is never mutated after publication except by
// UpdateFields; ReplaceAll builds the new slice first and swaps it in one
// assignment under the write lock.
type WorkoutRepository struct {
	mu     sync.RWMutex
	byPlan map[string][]domain.Workout
	planOf map[string]string // workout id -> plan id
	now    func() time.Time
}

func NewWorkoutRepository() *WorkoutRepository {
	return &WorkoutRepository{
		byPlan: make(map[string][]domain.Workout),
		planOf: make(map[string]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *WorkoutRepository) ReplaceAll(ctx context.Context, planID string, workouts []domain.Workout) ([]domain.Workout, error) {
	next := repository.PrepareWorkouts(planID, workouts, r.now())
	repository.SortWorkouts(next)
	result := copyWorkouts(next)

	r.mu.Lock()
	for _, old := range r.byPlan[planID] {
		delete(r.planOf, old.ID)
	}
	for _, w := range next {
		r.planOf[w.ID] = planID
	}
	r.byPlan[planID] = next
	r.mu.Unlock()

	return result, nil
}

func (r *WorkoutRepository) ListForPlan(ctx context.Context, planID string) ([]domain.Workout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyWorkouts(r.byPlan[planID]), nil
}

func (r *WorkoutRepository) GetByID(ctx context.Context, id string) (*domain.Workout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, set := r.locate(id)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	w := set[i]
	return &w, nil
}

func (r *WorkoutRepository) UpdateFields(ctx context.Context, id string, update domain.WorkoutUpdate) (*domain.Workout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, set := r.locate(id)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	update.Apply(&set[i])
	set[i].UpdatedAt = r.now()
	w := set[i]
	return &w, nil
}

// locate must be called with the lock held.
func (r *WorkoutRepository) locate(id string) (int, []domain.Workout) {
	planID, ok := r.planOf[id]
	if !ok {
		return -1, nil
	}
	set := r.byPlan[planID]
	for i := range set {
		if set[i].ID == id {
			return i, set
		}
	}
	return -1, nil
}

func copyWorkouts(in []domain.Workout) []domain.Workout {
	out := make([]domain.Workout, len(in))
	copy(out, in)
	return out
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/generation"
	"pbassistant/backend/internal/metrics"
	"pbassistant/backend/internal/prompt"
	"pbassistant/backend/internal/repository"
	"pbassistant/backend/internal/repository/memory"
	"pbassistant/backend/internal/storage"
)

var fixedNow = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func intPtr(i int) *int         { return &i }
func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// stubGenerator returns canned content.
type stubGenerator struct {
	mock    bool
	content string
	raw     json.RawMessage
	err     error
	calls   int
}

func (g *stubGenerator) Generate(ctx context.Context, pkg *prompt.Package) (*generation.Result, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &generation.Result{UsedMock: g.mock, Content: g.content, RawResponse: g.raw}, nil
}

func (g *stubGenerator) UsesMock() bool { return g.mock }

// countingPlans records every call that reaches the plan store.
type countingPlans struct {
	repository.TrainingPlanRepository
	mu    sync.Mutex
	calls []string
}

func (c *countingPlans) record(op string) {
	c.mu.Lock()
	c.calls = append(c.calls, op)
	c.mu.Unlock()
}

func (c *countingPlans) CreateDraft(ctx context.Context, p *domain.TrainingPlan) error {
	c.record("CreateDraft")
	return c.TrainingPlanRepository.CreateDraft(ctx, p)
}

func (c *countingPlans) MarkCompleted(ctx context.Context, id string, pc domain.PlanCompletion) (*domain.TrainingPlan, error) {
	c.record("MarkCompleted")
	return c.TrainingPlanRepository.MarkCompleted(ctx, id, pc)
}

func (c *countingPlans) MarkFailed(ctx context.Context, id, notes string) (*domain.TrainingPlan, error) {
	c.record("MarkFailed")
	return c.TrainingPlanRepository.MarkFailed(ctx, id, notes)
}

type countingUsers struct {
	repository.UserRepository
	calls int
}

func (c *countingUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	c.calls++
	return c.UserRepository.GetByID(ctx, id)
}

type countingWorkouts struct {
	repository.WorkoutRepository
	replaceCalls int
}

func (c *countingWorkouts) ReplaceAll(ctx context.Context, planID string, ws []domain.Workout) ([]domain.Workout, error) {
	c.replaceCalls++
	return c.WorkoutRepository.ReplaceAll(ctx, planID, ws)
}

// recordingArchive keeps written objects in memory.
type recordingArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func (a *recordingArchive) PutJSON(ctx context.Context, key string, v interface{}) error {
	if a.putErr != nil {
		return a.putErr
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = b
	return nil
}

func (a *recordingArchive) GeneratePresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://archive.example/" + key, nil
}

func (a *recordingArchive) Enabled() bool { return true }

type fixture struct {
	users    *countingUsers
	plans    *countingPlans
	workouts *countingWorkouts
	metrics  *metrics.Metrics
	svc      PlanService
}

func newFixture(t *testing.T, gen Generator, archive storage.PlanArchive) *fixture {
	t.Helper()
	users := memory.NewUserRepository()
	users.Put(domain.User{
		ID:                 "u-1",
		Provider:           "dev",
		ProviderUserID:     "runner",
		DisplayName:        strPtr("Runner"),
		Birthdate:          strPtr("1990-06-15"),
		WeeklyTrainingDays: intPtr(4),
	})
	f := &fixture{
		users:    &countingUsers{UserRepository: users},
		plans:    &countingPlans{TrainingPlanRepository: memory.NewTrainingPlanRepository()},
		workouts: &countingWorkouts{WorkoutRepository: memory.NewWorkoutRepository()},
		metrics:  metrics.New(),
	}
	f.svc = NewPlanService(PlanServiceDeps{
		Users:     f.users,
		Plans:     f.plans,
		Workouts:  f.workouts,
		Builder:   prompt.NewBuilder("deepseek-chat", clock),
		Generator: gen,
		Archive:   archive,
		Metrics:   f.metrics,
		Now:       clock,
	})
	return f
}

func marathonGoal() domain.GoalRequest {
	return domain.GoalRequest{RaceDistance: "Marathon", RaceDate: "2025-04-13", TargetFinishTimeSeconds: intPtr(12600)}
}

func mockGenerator() Generator {
	return generation.New(generation.Options{MockMode: true, Now: clock})
}

func TestCreatePlanValidationGate(t *testing.T) {
	tests := []struct {
		name string
		goal domain.GoalRequest
	}{
		{"missing race date", domain.GoalRequest{RaceDistance: "Marathon"}},
		{"missing race distance", domain.GoalRequest{RaceDate: "2025-04-13"}},
		{"unparsable race date", domain.GoalRequest{RaceDistance: "10K", RaceDate: "next spring"}},
		{"non-positive target", domain.GoalRequest{RaceDistance: "10K", RaceDate: "2025-04-13", TargetFinishTimeSeconds: intPtr(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{mock: true}
			f := newFixture(t, gen, nil)

			_, err := f.svc.CreatePlan(context.Background(), "u-1", tt.goal)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, f.users.calls)
			assert.Empty(t, f.plans.calls)
			assert.Zero(t, f.workouts.replaceCalls)
			assert.Zero(t, gen.calls)
		})
	}
}

func TestCreatePlanUnknownUser(t *testing.T) {
	gen := &stubGenerator{mock: true}
	f := newFixture(t, gen, nil)

	_, err := f.svc.CreatePlan(context.Background(), "nobody", marathonGoal())
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, f.plans.calls)
	assert.Zero(t, gen.calls)
}

func TestCreatePlanMarathonMock(t *testing.T) {
	f := newFixture(t, mockGenerator(), nil)
	ctx := context.Background()

	res, err := f.svc.CreatePlan(ctx, "u-1", marathonGoal())
	require.NoError(t, err)

	plan := res.Plan
	assert.Equal(t, domain.PlanStatusCompleted, plan.Status)
	assert.Equal(t, "u-1", plan.UserID)
	assert.Equal(t, "Marathon", plan.GoalRaceDistance)
	assert.Equal(t, "2025-04-13", plan.GoalRaceDate)
	assert.Equal(t, 12600, *plan.GoalTargetTimeSeconds)
	assert.Equal(t, "deepseek-chat", plan.AIModel)
	require.NotNil(t, plan.ConfidenceScore)
	assert.InDelta(t, 0.72, *plan.ConfidenceScore, 1e-9)
	require.NotNil(t, plan.GenerationNotes)
	assert.Equal(t, MockGenerationNotes, *plan.GenerationNotes)
	require.NotNil(t, plan.GeneratedAt)
	assert.True(t, plan.GeneratedAt.Equal(fixedNow))
	assert.NotEmpty(t, plan.PlanPayload)
	assert.Nil(t, res.RawResponse)

	require.Len(t, res.Workouts, 16)
	for i, w := range res.Workouts {
		assert.Equal(t, plan.ID, w.TrainingPlanID)
		assert.Equal(t, domain.WorkoutStatusScheduled, w.Status)
		assert.False(t, w.ScheduledDate.IsZero())
		if i > 0 {
			assert.False(t, w.ScheduledDate.Before(res.Workouts[i-1].ScheduledDate), "workouts are in schedule order")
		}
	}
	assert.Equal(t, "2025-04-13", res.Workouts[15].ScheduledDate.Format(domain.DateLayout))
	require.Len(t, res.Weeks, 4)
	assert.Len(t, res.Weeks[3].Workouts, 4)

	// Pipeline order: draft, then completion, then workouts.
	assert.Equal(t, []string{"CreateDraft", "MarkCompleted"}, f.plans.calls)
	assert.Equal(t, 1, f.workouts.replaceCalls)

	var ctxDoc map[string]interface{}
	require.NoError(t, json.Unmarshal(plan.PromptContext, &ctxDoc))
	assert.Contains(t, ctxDoc, "profile")
	assert.Contains(t, ctxDoc, "schema")
}

func TestGetLatestPlanIdempotent(t *testing.T) {
	f := newFixture(t, mockGenerator(), nil)
	ctx := context.Background()

	created, err := f.svc.CreatePlan(ctx, "u-1", marathonGoal())
	require.NoError(t, err)

	first, err := f.svc.GetLatestPlan(ctx, "u-1")
	require.NoError(t, err)
	second, err := f.svc.GetLatestPlan(ctx, "u-1")
	require.NoError(t, err)

	assert.Equal(t, created.Plan.ID, first.Plan.ID)
	assert.Equal(t, first, second)
	assert.Len(t, first.Workouts, 16)
	assert.Len(t, first.Weeks, 4)
}

func TestGetLatestPlanNone(t *testing.T) {
	f := newFixture(t, mockGenerator(), nil)
	_, err := f.svc.GetLatestPlan(context.Background(), "u-1")
	assert.ErrorIs(t, err, ErrNoPlan)
}

func TestCreatePlanProviderFailure(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"error":"upstream exploded"}`))),
			Header:     http.Header{},
		}, nil
	})}
	gen := generation.New(generation.Options{APIKey: "sk-test", HTTPClient: client, Now: clock})
	f := newFixture(t, gen, nil)
	ctx := context.Background()

	_, err := f.svc.CreatePlan(ctx, "u-1", marathonGoal())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
	var pe *generation.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)

	plans, err := f.svc.ListPlans(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, domain.PlanStatusFailed, plans[0].Status)
	require.NotNil(t, plans[0].GenerationNotes)
	assert.Contains(t, *plans[0].GenerationNotes, "500")
	assert.Nil(t, plans[0].PlanPayload)

	workouts, err := f.workouts.ListForPlan(ctx, plans[0].ID)
	require.NoError(t, err)
	assert.Empty(t, workouts)
	assert.Zero(t, f.workouts.replaceCalls)

	_, err = f.svc.GetLatestPlan(ctx, "u-1")
	assert.ErrorIs(t, err, ErrNoPlan)
}

func TestCreatePlanMalformedContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "Here is your plan: run a lot."},
		{"json array", `[{"weeks":[]}]`},
		{"no weeks", `{"planSummary":{"totalWeeks":1},"weeks":[]}`},
		{"bad day", `{"weeks":[{"weekNumber":1,"workouts":[{"day":"Monday","workoutType":"Easy"}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &stubGenerator{content: tt.content}, nil)
			ctx := context.Background()

			_, err := f.svc.CreatePlan(ctx, "u-1", marathonGoal())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedPlan)
			assert.Equal(t, []string{"CreateDraft", "MarkFailed"}, f.plans.calls)
			assert.Zero(t, f.workouts.replaceCalls)

			plans, err := f.svc.ListPlans(ctx, "u-1", domain.PlanStatusFailed)
			require.NoError(t, err)
			require.Len(t, plans, 1)
			require.NotNil(t, plans[0].GenerationNotes)
			assert.True(t, strings.HasPrefix(*plans[0].GenerationNotes, "malformed plan"))
		})
	}
}

func TestCreatePlanLiveKeepsRawResponse(t *testing.T) {
	content := `{"planSummary":{"totalWeeks":1,"confidence":0.5},"weeks":[{"weekNumber":1,"microcycleFocus":"Base","workouts":[` +
		`{"day":"2025-04-07","type":"Easy Run","distance_km":5},` +
		`{"day":"2025-04-07","workoutType":"Strides","description":"6x100m"}]}],` +
		`"metadata":{"modelVersion":"deepseek-chat","generatedAtIso":"2025-01-09T10:00:00Z"}}`
	raw := json.RawMessage(`{"id":"cmpl-1","choices":[]}`)
	f := newFixture(t, &stubGenerator{content: "```json\n" + content + "\n```", raw: raw}, nil)

	res, err := f.svc.CreatePlan(context.Background(), "u-1", marathonGoal())
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(res.RawResponse))
	assert.Nil(t, res.Plan.GenerationNotes)
	require.NotNil(t, res.Plan.ConfidenceScore)
	assert.InDelta(t, 0.5, *res.Plan.ConfidenceScore, 1e-9)
	assert.Equal(t, "2025-01-09T10:00:00Z", res.Plan.GeneratedAt.Format(time.RFC3339))

	require.Len(t, res.Workouts, 2)
	assert.Equal(t, "Easy Run", res.Workouts[0].WorkoutType)
	assert.InDelta(t, 5.0, *res.Workouts[0].DistanceKm, 1e-9)
	assert.Equal(t, "Strides", res.Workouts[1].WorkoutType)
	assert.Equal(t, 0, res.Workouts[0].Sequence)
	assert.Equal(t, 1, res.Workouts[1].Sequence)
}

func TestCreatePlanSupersedesPreviousLatest(t *testing.T) {
	f := newFixture(t, mockGenerator(), nil)
	ctx := context.Background()

	first, err := f.svc.CreatePlan(ctx, "u-1", marathonGoal())
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := f.svc.CreatePlan(ctx, "u-1", domain.GoalRequest{RaceDistance: "Half Marathon", RaceDate: "2025-03-16"})
	require.NoError(t, err)

	latest, err := f.svc.GetLatestPlan(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, second.Plan.ID, latest.Plan.ID)
	assert.NotEqual(t, first.Plan.ID, latest.Plan.ID)

	plans, err := f.svc.ListPlans(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, second.Plan.ID, plans[0].ID)
}

func TestListPlansRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, mockGenerator(), nil)
	_, err := f.svc.ListPlans(context.Background(), "u-1", domain.PlanStatus("archived"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreatePlanArchivesArtefacts(t *testing.T) {
	archive := &recordingArchive{}
	f := newFixture(t, mockGenerator(), archive)
	ctx := context.Background()

	res, err := f.svc.CreatePlan(ctx, "u-1", marathonGoal())
	require.NoError(t, err)

	promptKey := storage.PlanObjectKey("u-1", res.Plan.ID, storage.PromptObjectName)
	responseKey := storage.PlanObjectKey("u-1", res.Plan.ID, storage.ResponseObjectName)
	require.Contains(t, archive.objects, promptKey)
	require.Contains(t, archive.objects, responseKey)
	assert.Contains(t, string(archive.objects[promptKey]), `"messages"`)
	assert.JSONEq(t, string(res.Plan.PlanPayload), string(archive.objects[responseKey]))

	url, err := f.svc.GetPlanArchiveURL(ctx, "u-1", res.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://archive.example/"+responseKey, url)

	_, err = f.svc.GetPlanArchiveURL(ctx, "someone-else", res.Plan.ID)
	assert.ErrorIs(t, err, ErrPlanAccessDenied)
	_, err = f.svc.GetPlanArchiveURL(ctx, "u-1", "missing")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestCreatePlanArchiveFailureIsNotFatal(t *testing.T) {
	archive := &recordingArchive{putErr: errors.New("bucket unavailable")}
	f := newFixture(t, mockGenerator(), archive)

	res, err := f.svc.CreatePlan(context.Background(), "u-1", marathonGoal())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStatusCompleted, res.Plan.Status)
}

func TestGetPlanArchiveURLDisabled(t *testing.T) {
	f := newFixture(t, mockGenerator(), nil)
	ctx := context.Background()
	res, err := f.svc.CreatePlan(ctx, "u-1", marathonGoal())
	require.NoError(t, err)

	_, err = f.svc.GetPlanArchiveURL(ctx, "u-1", res.Plan.ID)
	assert.ErrorIs(t, err, storage.ErrArchiveDisabled)
}

func TestCreatePlanUsesProfileTrainingDays(t *testing.T) {
	f := newFixture(t, mockGenerator(), nil)
	res, err := f.svc.CreatePlan(context.Background(), "u-1", marathonGoal())
	require.NoError(t, err)

	var pctx prompt.Context
	require.NoError(t, json.Unmarshal(res.Plan.PromptContext, &pctx))
	require.NotNil(t, pctx.Goal.Constraints.WeeklyTrainingDays)
	assert.Equal(t, 4, *pctx.Goal.Constraints.WeeklyTrainingDays)
	require.NotNil(t, pctx.Profile.Age)
	assert.Equal(t, 34, *pctx.Profile.Age)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/generation"
	"pbassistant/backend/internal/logger"
	"pbassistant/backend/internal/metrics"
	"pbassistant/backend/internal/observability"
	"pbassistant/backend/internal/planparser"
	"pbassistant/backend/internal/prompt"
	"pbassistant/backend/internal/repository"
	"pbassistant/backend/internal/storage"
)

// --- Error Definitions ---
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrNoPlan           = errors.New("no completed training plan found")
	ErrPlanNotFound     = errors.New("training plan not found")
	ErrPlanAccessDenied = errors.New("access denied to this training plan")
)

// MockGenerationNotes is recorded on plans produced without calling the provider.
const MockGenerationNotes = "Plan generated using mock mode. No call to the provider was made."

// ArchiveURLExpiry bounds how long an archive download link stays valid.
const ArchiveURLExpiry = 15 * time.Minute

// Generator produces plan content for a prompt package.
type Generator interface {
	Generate(ctx context.Context, pkg *prompt.Package) (*generation.Result, error)
	UsesMock() bool
}

// PlanResult is a plan with its persisted workouts.
type PlanResult struct {
	Plan        *domain.TrainingPlan
	Workouts    []domain.Workout
	Weeks       []planparser.WeekGroup
	RawResponse json.RawMessage // nil in mock mode and for stored plans
}

// --- Service Interface ---
type PlanService interface {
	CreatePlan(ctx context.Context, userID string, goal domain.GoalRequest) (*PlanResult, error)
	GetLatestPlan(ctx context.Context, userID string) (*PlanResult, error)
	ListPlans(ctx context.Context, userID string, statuses ...domain.PlanStatus) ([]domain.TrainingPlan, error)
	GetPlanArchiveURL(ctx context.Context, userID, planID string) (string, error)
}

// PlanServiceDeps lists what the pipeline is wired from. Archive, Metrics,
// Logger and Now are optional.
type PlanServiceDeps struct {
	Users     repository.UserRepository
	Plans     repository.TrainingPlanRepository
	Workouts  repository.WorkoutRepository
	Builder   *prompt.Builder
	Generator Generator
	Archive   storage.PlanArchive
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// --- Service Implementation ---

type planService struct {
	users     repository.UserRepository
	plans     repository.TrainingPlanRepository
	workouts  repository.WorkoutRepository
	builder   *prompt.Builder
	generator Generator
	archive   storage.PlanArchive
	metrics   *metrics.Metrics
	log       *logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPlanService creates the plan generation pipeline.
func NewPlanService(deps PlanServiceDeps) PlanService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	builder := deps.Builder
	if builder == nil {
		builder = prompt.NewBuilder("", now)
	}
	archive := deps.Archive
	if archive == nil {
		archive = storage.NewNoopArchive()
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &planService{
		users:     deps.Users,
		plans:     deps.Plans,
		workouts:  deps.Workouts,
		builder:   builder,
		generator: deps.Generator,
		archive:   archive,
		metrics:   deps.Metrics,
		log:       log.With("service", "plan"),
		tracer:    observability.Tracer(),
		now:       now,
	}
}

func (s *planService) mode() string {
	if s.generator.UsesMock() {
		return metrics.ModeMock
	}
	return metrics.ModeLive
}

// CreatePlan runs the whole pipeline: validate, compose, draft, generate,
// parse, complete (or fail) and replace the plan's workouts.
func (s *planService) CreatePlan(ctx context.Context, userID string, goal domain.GoalRequest) (*PlanResult, error) {
	ctx, span := s.tracer.Start(ctx, "PlanService.CreatePlan", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("generation.mode", s.mode()),
	))
	defer span.End()

	result, err := s.createPlan(ctx, userID, goal)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("plan.id", result.Plan.ID),
		attribute.Int("plan.workouts", len(result.Workouts)),
	)
	return result, nil
}

func (s *planService) createPlan(ctx context.Context, userID string, goal domain.GoalRequest) (*PlanResult, error) {
	// 1. Validate before touching any store
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if err := prompt.ValidateGoal(goal); err != nil {
		return nil, err
	}

	// 2. Load the athlete
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// 3. Compose and record the draft
	pkg, err := s.builder.Build(user, goal)
	if err != nil {
		return nil, err
	}
	plan := &domain.TrainingPlan{
		UserID:                user.ID,
		GoalRaceDistance:      pkg.Context.Goal.RaceDistance,
		GoalRaceDate:          pkg.Context.Goal.RaceDate,
		GoalTargetTimeSeconds: pkg.Context.Goal.TargetFinishTimeSeconds,
		GoalNotes:             pkg.Context.Goal.Description,
		AIModel:               pkg.Model,
		PromptContext:         pkg.PromptContext,
	}
	if err := s.plans.CreateDraft(ctx, plan); err != nil {
		return nil, err
	}
	log := s.log.With("planID", plan.ID, "userID", user.ID)
	log.Info("Training plan draft created", "raceDistance", plan.GoalRaceDistance, "raceDate", plan.GoalRaceDate)

	// 4. Generate
	res, err := s.generate(ctx, pkg)
	if err != nil {
		s.fail(ctx, log, plan.ID, err.Error(), metrics.OutcomeFailed)
		return nil, err
	}

	// 5. Parse and flatten
	payload, raw, err := planparser.Parse(res.Content)
	if err != nil {
		s.fail(ctx, log, plan.ID, err.Error(), metrics.OutcomeMalformed)
		return nil, err
	}
	workouts, err := planparser.Flatten(plan.ID, payload)
	if err != nil {
		s.fail(ctx, log, plan.ID, err.Error(), metrics.OutcomeMalformed)
		return nil, err
	}

	// 6. Complete the plan, then swap in its workouts
	var notes *string
	if res.UsedMock {
		n := MockGenerationNotes
		notes = &n
	}
	completed, err := s.plans.MarkCompleted(ctx, plan.ID, domain.PlanCompletion{
		Payload:         raw,
		ConfidenceScore: planparser.ConfidenceScore(payload),
		GeneratedAt:     planparser.GeneratedAt(payload, s.now().UTC()),
		Notes:           notes,
	})
	if err != nil {
		return nil, err
	}
	persisted, err := s.workouts.ReplaceAll(ctx, plan.ID, workouts)
	if err != nil {
		return nil, err
	}

	s.metrics.ObservePlanGeneration(metrics.OutcomeCompleted, s.mode())
	s.metrics.AddWorkoutsPersisted(len(persisted))
	log.Info("Training plan completed", "workouts", len(persisted), "mock", res.UsedMock)

	s.archivePlan(ctx, log, completed, pkg, res, raw)

	return &PlanResult{
		Plan:        completed,
		Workouts:    persisted,
		Weeks:       planparser.GroupByWeek(persisted),
		RawResponse: res.RawResponse,
	}, nil
}

func (s *planService) generate(ctx context.Context, pkg *prompt.Package) (*generation.Result, error) {
	ctx, span := s.tracer.Start(ctx, "Generator.Generate", trace.WithAttributes(
		attribute.String("generation.model", pkg.Model),
	))
	defer span.End()

	started := time.Now()
	res, err := s.generator.Generate(ctx, pkg)
	s.metrics.ObserveGenerationDuration(s.mode(), time.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}
	span.SetAttributes(attribute.Bool("generation.mock", res.UsedMock))
	return res, nil
}

// fail records a failed generation. The caller's error is what gets
// returned, so a failure here is only logged.
func (s *planService) fail(ctx context.Context, log *logger.Logger, planID, notes, outcome string) {
	s.metrics.ObservePlanGeneration(outcome, s.mode())
	log.Warn("Training plan generation failed", "outcome", outcome, "error", notes)
	if _, err := s.plans.MarkFailed(ctx, planID, notes); err != nil {
		log.Error("Failed to mark training plan as failed", "error", err)
	}
}

type archivedPrompt struct {
	Model    string           `json:"model"`
	Messages []prompt.Message `json:"messages"`
	Context  json.RawMessage  `json:"context"`
}

// archivePlan is best effort: archive errors never fail the request.
func (s *planService) archivePlan(ctx context.Context, log *logger.Logger, plan *domain.TrainingPlan, pkg *prompt.Package, res *generation.Result, payload json.RawMessage) {
	if !s.archive.Enabled() {
		return
	}
	promptKey := storage.PlanObjectKey(plan.UserID, plan.ID, storage.PromptObjectName)
	if err := s.archive.PutJSON(ctx, promptKey, archivedPrompt{
		Model:    pkg.Model,
		Messages: pkg.Messages,
		Context:  pkg.PromptContext,
	}); err != nil {
		log.Warn("Failed to archive prompt", "key", promptKey, "error", err)
	}

	response := res.RawResponse
	if response == nil {
		response = payload
	}
	responseKey := storage.PlanObjectKey(plan.UserID, plan.ID, storage.ResponseObjectName)
	if err := s.archive.PutJSON(ctx, responseKey, response); err != nil {
		log.Warn("Failed to archive provider response", "key", responseKey, "error", err)
	}
}

// GetLatestPlan returns the user's most recent completed plan.
func (s *planService) GetLatestPlan(ctx context.Context, userID string) (*PlanResult, error) {
	plan, err := s.plans.GetLatestCompleted(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoPlan
		}
		return nil, err
	}
	workouts, err := s.workouts.ListForPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	return &PlanResult{
		Plan:     plan,
		Workouts: workouts,
		Weeks:    planparser.GroupByWeek(workouts),
	}, nil
}

// ListPlans returns the user's plans newest first, failed ones included
// unless statuses filters them out.
func (s *planService) ListPlans(ctx context.Context, userID string, statuses ...domain.PlanStatus) ([]domain.TrainingPlan, error) {
	for _, st := range statuses {
		switch st {
		case domain.PlanStatusDraft, domain.PlanStatusCompleted, domain.PlanStatusFailed:
		default:
			return nil, fmt.Errorf("%w: unknown plan status %q", domain.ErrInvalidInput, st)
		}
	}
	return s.plans.ListByUser(ctx, userID, statuses...)
}

// GetPlanArchiveURL returns a temporary link to the archived provider response.
func (s *planService) GetPlanArchiveURL(ctx context.Context, userID, planID string) (string, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrPlanNotFound
		}
		return "", err
	}
	if plan.UserID != userID {
		return "", ErrPlanAccessDenied
	}
	if !s.archive.Enabled() {
		return "", storage.ErrArchiveDisabled
	}
	key := storage.PlanObjectKey(plan.UserID, plan.ID, storage.ResponseObjectName)
	return s.archive.GeneratePresignedDownloadURL(ctx, key, ArchiveURLExpiry)
}

// internal/repository/mongo/training_plan_repo.go
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
)

type trainingPlanDocument struct {
	ID     string `bson:"_id"`
	UserID string `bson:"userId"`

	GoalRaceDistance      string  `bson:"goalRaceDistance"`
	GoalRaceDate          string  `bson:"goalRaceDate"`
	GoalTargetTimeSeconds *int    `bson:"goalTargetTimeSeconds,omitempty"`
	GoalNotes             *string `bson:"goalNotes,omitempty"`

	Status          string   `bson:"status"`
	AIModel         string   `bson:"aiModel"`
	PromptContext   bson.D   `bson:"promptContext,omitempty"`
	PlanPayload     bson.D   `bson:"planPayload,omitempty"`
	ConfidenceScore *float64 `bson:"confidenceScore,omitempty"`
	GenerationNotes *string  `bson:"generationNotes,omitempty"`

	GeneratedAt *time.Time `bson:"generatedAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
	Seq         int64      `bson:"seq"`
}

// mongoTrainingPlanRepository implements repository.TrainingPlanRepository
type mongoTrainingPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoTrainingPlanRepository creates a new TrainingPlan repository.
func NewMongoTrainingPlanRepository(db *mongo.Database) repository.TrainingPlanRepository {
	return &mongoTrainingPlanRepository{
		collection: db.Collection(trainingPlanCollectionName),
	}
}

func (r *mongoTrainingPlanRepository) CreateDraft(ctx context.Context, plan *domain.TrainingPlan) error {
	if err := repository.PrepareDraft(plan, time.Now().UTC()); err != nil {
		return err
	}
	promptContext, err := jsonToBSON(plan.PromptContext)
	if err != nil {
		return repository.Persistence("encode prompt context", err)
	}
	doc := trainingPlanDocument{
		ID:                    plan.ID,
		UserID:                plan.UserID,
		GoalRaceDistance:      plan.GoalRaceDistance,
		GoalRaceDate:          plan.GoalRaceDate,
		GoalTargetTimeSeconds: plan.GoalTargetTimeSeconds,
		GoalNotes:             plan.GoalNotes,
		Status:                string(plan.Status),
		AIModel:               plan.AIModel,
		PromptContext:         promptContext,
		GenerationNotes:       plan.GenerationNotes,
		CreatedAt:             plan.CreatedAt,
		UpdatedAt:             plan.UpdatedAt,
		Seq:                   repository.NextPlanSeq(),
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return repository.Persistence("create draft", err)
	}
	return nil
}

func (r *mongoTrainingPlanRepository) MarkCompleted(ctx context.Context, id string, c domain.PlanCompletion) (*domain.TrainingPlan, error) {
	payload, err := jsonToBSON(c.Payload)
	if err != nil {
		return nil, repository.Persistence("encode plan payload", err)
	}
	set := bson.M{
		"status":      string(domain.PlanStatusCompleted),
		"planPayload": payload,
		"generatedAt": c.GeneratedAt.UTC(),
		"updatedAt":   time.Now().UTC(),
	}
	unset := bson.M{}
	if c.ConfidenceScore != nil {
		set["confidenceScore"] = *c.ConfidenceScore
	} else {
		unset["confidenceScore"] = ""
	}
	if c.Notes != nil {
		set["generationNotes"] = *c.Notes
	} else {
		unset["generationNotes"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return r.transition(ctx, id, domain.PlanStatusCompleted, update)
}

func (r *mongoTrainingPlanRepository) MarkFailed(ctx context.Context, id string, notes string) (*domain.TrainingPlan, error) {
	update := bson.M{
		"$set": bson.M{
			"status":          string(domain.PlanStatusFailed),
			"generationNotes": notes,
			"updatedAt":       time.Now().UTC(),
		},
		"$unset": bson.M{"planPayload": ""},
	}
	return r.transition(ctx, id, domain.PlanStatusFailed, update)
}

func (r *mongoTrainingPlanRepository) transition(ctx context.Context, id string, to domain.PlanStatus, update bson.M) (*domain.TrainingPlan, error) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": []string{string(domain.PlanStatusDraft), string(to)}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc trainingPlanDocument
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			current, getErr := r.GetByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, repository.CheckTransition(id, current.Status, to)
		}
		return nil, repository.Persistence("update plan status", err)
	}
	return documentToPlan(doc)
}

// GetByID retrieves a single training plan by its ID.
func (r *mongoTrainingPlanRepository) GetByID(ctx context.Context, id string) (*domain.TrainingPlan, error) {
	var doc trainingPlanDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Persistence("get plan", err)
	}
	return documentToPlan(doc)
}

func (r *mongoTrainingPlanRepository) GetLatestCompleted(ctx context.Context, userID string) (*domain.TrainingPlan, error) {
	filter := bson.M{"userId": userID, "status": string(domain.PlanStatusCompleted)}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}})

	var doc trainingPlanDocument
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Persistence("get latest plan", err)
	}
	return documentToPlan(doc)
}

// ListByUser retrieves the user's plans, newest first.
func (r *mongoTrainingPlanRepository) ListByUser(ctx context.Context, userID string, statuses ...domain.PlanStatus) ([]domain.TrainingPlan, error) {
	filter := bson.M{"userId": userID}
	if len(statuses) > 0 {
		s := make([]string, len(statuses))
		for i, st := range statuses {
			s[i] = string(st)
		}
		filter["status"] = bson.M{"$in": s}
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, repository.Persistence("list plans", err)
	}
	defer cursor.Close(ctx)

	var docs []trainingPlanDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, repository.Persistence("list plans", err)
	}
	// Return empty slice if no plans found (not an error)
	plans := make([]domain.TrainingPlan, 0, len(docs))
	for _, doc := range docs {
		p, err := documentToPlan(doc)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, nil
}

func documentToPlan(doc trainingPlanDocument) (*domain.TrainingPlan, error) {
	promptContext, err := bsonToJSON(doc.PromptContext)
	if err != nil {
		return nil, repository.Persistence("decode prompt context", err)
	}
	payload, err := bsonToJSON(doc.PlanPayload)
	if err != nil {
		return nil, repository.Persistence("decode plan payload", err)
	}
	p := &domain.TrainingPlan{
		ID:                    doc.ID,
		UserID:                doc.UserID,
		GoalRaceDistance:      doc.GoalRaceDistance,
		GoalRaceDate:          doc.GoalRaceDate,
		GoalTargetTimeSeconds: doc.GoalTargetTimeSeconds,
		GoalNotes:             doc.GoalNotes,
		Status:                domain.PlanStatus(doc.Status),
		AIModel:               doc.AIModel,
		PromptContext:         promptContext,
		PlanPayload:           payload,
		ConfidenceScore:       doc.ConfidenceScore,
		GenerationNotes:       doc.GenerationNotes,
		CreatedAt:             doc.CreatedAt.UTC(),
		UpdatedAt:             doc.UpdatedAt.UTC(),
	}
	if doc.GeneratedAt != nil {
		t := doc.GeneratedAt.UTC()
		p.GeneratedAt = &t
	}
	return p, nil
}

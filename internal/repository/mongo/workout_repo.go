// internal/repository/mongo/workout_repo.go
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

type workoutPayloadDocument struct {
	Effort          *string `bson:"effort,omitempty"`
	Notes           *string `bson:"notes,omitempty"`
	WeekNumber      int     `bson:"weekNumber"`
	MicrocycleFocus string  `bson:"microcycleFocus,omitempty"`
}

type workoutDocument struct {
	ID             string    `bson:"_id"`
	TrainingPlanID string    `bson:"trainingPlanId"`
	ScheduledDate  time.Time `bson:"scheduledDate"`
	Sequence       int       `bson:"sequence"`
	WorkoutType    string    `bson:"workoutType"`
	Description    string    `bson:"description,omitempty"`
	DistanceKm     *float64  `bson:"distanceKm,omitempty"`
	TargetPace     *string   `bson:"targetPace,omitempty"`
	Status         string    `bson:"status"`

	PreRunSleepQuality     *int    `bson:"preRunSleepQuality,omitempty"`
	PreRunBodyFeel         *int    `bson:"preRunBodyFeel,omitempty"`
	UserFeedbackDifficulty *int    `bson:"userFeedbackDifficulty,omitempty"`
	UserFeedbackNotes      *string `bson:"userFeedbackNotes,omitempty"`

	AdditionalPayload *workoutPayloadDocument `bson:"additionalPayload,omitempty"`
	CreatedAt         time.Time               `bson:"createdAt"`
	UpdatedAt         time.Time               `bson:"updatedAt"`
}

// mongoWorkoutRepository implements repository.WorkoutRepository
type mongoWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutRepository creates a new Workout repository.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{
		collection: db.Collection(workoutCollectionName),
	}
}

// ReplaceAll runs the delete and insert inside one session transaction.
func (r *mongoWorkoutRepository) ReplaceAll(ctx context.Context, planID string, workouts []domain.Workout) ([]domain.Workout, error) {
	prepared := repository.PrepareWorkouts(planID, workouts, time.Now().UTC())
	docs := make([]interface{}, 0, len(prepared))
	for i := range prepared {
		docs = append(docs, workoutToDocument(&prepared[i]))
	}

	session, err := r.collection.Database().Client().StartSession()
	if err != nil {
		return nil, repository.Persistence("start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.collection.DeleteMany(sc, bson.M{"trainingPlanId": planID}); err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return nil, nil
		}
		_, err := r.collection.InsertMany(sc, docs)
		return nil, err
	})
	if err != nil {
		return nil, repository.Persistence("replace workouts", err)
	}

	repository.SortWorkouts(prepared)
	return prepared, nil
}

// ListForPlan retrieves all workouts for a plan in schedule order.
func (r *mongoWorkoutRepository) ListForPlan(ctx context.Context, planID string) ([]domain.Workout, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "scheduledDate", Value: 1}, {Key: "sequence", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"trainingPlanId": planID}, findOptions)
	if err != nil {
		return nil, repository.Persistence("list workouts", err)
	}
	defer cursor.Close(ctx)

	var docs []workoutDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, repository.Persistence("list workouts", err)
	}
	out := make([]domain.Workout, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentToWorkout(doc))
	}
	return out, nil
}

// GetByID retrieves a single workout by its ID.
func (r *mongoWorkoutRepository) GetByID(ctx context.Context, id string) (*domain.Workout, error) {
	var doc workoutDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Persistence("get workout", err)
	}
	w := documentToWorkout(doc)
	return &w, nil
}

func (r *mongoWorkoutRepository) UpdateFields(ctx context.Context, id string, u domain.WorkoutUpdate) (*domain.Workout, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if u.Status != nil {
		set["status"] = string(*u.Status)
	}
	if u.PreRunSleepQuality != nil {
		set["preRunSleepQuality"] = *u.PreRunSleepQuality
	}
	if u.PreRunBodyFeel != nil {
		set["preRunBodyFeel"] = *u.PreRunBodyFeel
	}
	if u.UserFeedbackDifficulty != nil {
		set["userFeedbackDifficulty"] = *u.UserFeedbackDifficulty
	}
	if u.UserFeedbackNotes != nil {
		set["userFeedbackNotes"] = *u.UserFeedbackNotes
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc workoutDocument
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Persistence("update workout", err)
	}
	w := documentToWorkout(doc)
	return &w, nil
}

func workoutToDocument(w *domain.Workout) workoutDocument {
	doc := workoutDocument{
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
	if p := w.AdditionalPayload; p != nil {
		doc.AdditionalPayload = &workoutPayloadDocument{
			Effort:          p.Effort,
			Notes:           p.Notes,
			WeekNumber:      p.WeekNumber,
			MicrocycleFocus: p.MicrocycleFocus,
		}
	}
	return doc
}

func documentToWorkout(doc workoutDocument) domain.Workout {
	w := domain.Workout{
		ID:                     doc.ID,
		TrainingPlanID:         doc.TrainingPlanID,
		ScheduledDate:          doc.ScheduledDate.UTC(),
		Sequence:               doc.Sequence,
		WorkoutType:            doc.WorkoutType,
		Description:            doc.Description,
		DistanceKm:             doc.DistanceKm,
		TargetPace:             doc.TargetPace,
		Status:                 domain.WorkoutStatus(doc.Status),
		PreRunSleepQuality:     doc.PreRunSleepQuality,
		PreRunBodyFeel:         doc.PreRunBodyFeel,
		UserFeedbackDifficulty: doc.UserFeedbackDifficulty,
		UserFeedbackNotes:      doc.UserFeedbackNotes,
		CreatedAt:              doc.CreatedAt.UTC(),
		UpdatedAt:              doc.UpdatedAt.UTC(),
	}
	if p := doc.AdditionalPayload; p != nil {
		w.AdditionalPayload = &domain.WorkoutPayload{
			Effort:          p.Effort,
			Notes:           p.Notes,
			WeekNumber:      p.WeekNumber,
			MicrocycleFocus: p.MicrocycleFocus,
		}
	}
	return w
}

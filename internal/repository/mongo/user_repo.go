package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
)

type userDocument struct {
	ID             string `bson:"_id"`
	Provider       string `bson:"provider"`
	ProviderUserID string `bson:"providerUserId"`

	DisplayName *string `bson:"displayName,omitempty"`
	AvatarURL   *string `bson:"avatarUrl,omitempty"`
	Gender      *string `bson:"gender,omitempty"`
	Birthdate   *string `bson:"birthdate,omitempty"`

	HeightCm           *float64 `bson:"heightCm,omitempty"`
	WeightKg           *float64 `bson:"weightKg,omitempty"`
	WeeklyTrainingDays *int     `bson:"weeklyTrainingDays,omitempty"`

	BestRaceDistance    *string `bson:"bestRaceDistance,omitempty"`
	BestRaceTimeSeconds *int    `bson:"bestRaceTimeSeconds,omitempty"`
	Timezone            *string `bson:"timezone,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
	LastLoginAt *time.Time `bson:"lastLoginAt,omitempty"`
}

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
// It expects a connected *mongo.Database instance.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var doc userDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Persistence("get user", err)
	}
	return documentToUser(doc), nil
}

// UpsertIdentity relies on the unique (provider, providerUserId) index.
func (r *mongoUserRepository) UpsertIdentity(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	if strings.TrimSpace(identity.Provider) == "" || strings.TrimSpace(identity.ProviderUserID) == "" {
		return nil, fmt.Errorf("%w: provider and provider user id are required", domain.ErrInvalidInput)
	}
	now := time.Now().UTC()
	filter := bson.M{"provider": identity.Provider, "providerUserId": identity.ProviderUserID}

	set := bson.M{"lastLoginAt": now, "updatedAt": now}
	if identity.DisplayName != nil {
		set["displayName"] = *identity.DisplayName
	}
	if identity.AvatarURL != nil {
		set["avatarUrl"] = *identity.AvatarURL
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": uuid.NewString(), "createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc userDocument
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, repository.Persistence("upsert user", err)
	}
	return documentToUser(doc), nil
}

func (r *mongoUserRepository) UpdateProfile(ctx context.Context, id string, p domain.ProfileUpdate) (*domain.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.DisplayName != nil {
		set["displayName"] = *p.DisplayName
	}
	if p.AvatarURL != nil {
		set["avatarUrl"] = *p.AvatarURL
	}
	if p.Gender != nil {
		set["gender"] = *p.Gender
	}
	if p.Birthdate != nil {
		set["birthdate"] = *p.Birthdate
	}
	if p.HeightCm != nil {
		set["heightCm"] = *p.HeightCm
	}
	if p.WeightKg != nil {
		set["weightKg"] = *p.WeightKg
	}
	if p.WeeklyTrainingDays != nil {
		set["weeklyTrainingDays"] = *p.WeeklyTrainingDays
	}
	if p.BestRaceDistance != nil {
		set["bestRaceDistance"] = *p.BestRaceDistance
	}
	if p.BestRaceTimeSeconds != nil {
		set["bestRaceTimeSeconds"] = *p.BestRaceTimeSeconds
	}
	if p.Timezone != nil {
		set["timezone"] = *p.Timezone
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Persistence("update profile", err)
	}
	return documentToUser(doc), nil
}

func documentToUser(doc userDocument) *domain.User {
	u := &domain.User{
		ID:                  doc.ID,
		Provider:            doc.Provider,
		ProviderUserID:      doc.ProviderUserID,
		DisplayName:         doc.DisplayName,
		AvatarURL:           doc.AvatarURL,
		Gender:              doc.Gender,
		Birthdate:           doc.Birthdate,
		HeightCm:            doc.HeightCm,
		WeightKg:            doc.WeightKg,
		WeeklyTrainingDays:  doc.WeeklyTrainingDays,
		BestRaceDistance:    doc.BestRaceDistance,
		BestRaceTimeSeconds: doc.BestRaceTimeSeconds,
		Timezone:            doc.Timezone,
		CreatedAt:           doc.CreatedAt.UTC(),
		UpdatedAt:           doc.UpdatedAt.UTC(),
	}
	if doc.LastLoginAt != nil {
		t := doc.LastLoginAt.UTC()
		u.LastLoginAt = &t
	}
	return u
}

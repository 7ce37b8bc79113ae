package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
)

// UserRepository implements repository.UserRepository
type UserRepository struct {
	mu         sync.RWMutex
	users      map[string]*domain.User
	byIdentity map[string]string // provider|providerUserId -> user id
	now        func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:      make(map[string]*domain.User),
		byIdentity: make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func identityKey(provider, providerUserID string) string {
	return provider + "|" + providerUserID
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) UpsertIdentity(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	if strings.TrimSpace(identity.Provider) == "" || strings.TrimSpace(identity.ProviderUserID) == "" {
		return nil, fmt.Errorf("%w: provider and provider user id are required", domain.ErrInvalidInput)
	}
	now := r.now()
	key := identityKey(identity.Provider, identity.ProviderUserID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byIdentity[key]; ok {
		u := r.users[id]
		if identity.DisplayName != nil {
			u.DisplayName = identity.DisplayName
		}
		if identity.AvatarURL != nil {
			u.AvatarURL = identity.AvatarURL
		}
		u.LastLoginAt = &now
		u.UpdatedAt = now
		out := *u
		return &out, nil
	}

	u := &domain.User{
		ID:             uuid.NewString(),
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		DisplayName:    identity.DisplayName,
		AvatarURL:      identity.AvatarURL,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastLoginAt:    &now,
	}
	r.users[u.ID] = u
	r.byIdentity[key] = u.ID
	out := *u
	return &out, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	update.Apply(u)
	u.UpdatedAt = r.now()
	out := *u
	return &out, nil
}

// Put stores u as-is. Used to seed fixtures.
func (r *UserRepository) Put(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = &u
	if u.Provider != "" || u.ProviderUserID != "" {
		r.byIdentity[identityKey(u.Provider, u.ProviderUserID)] = u.ID
	}
}

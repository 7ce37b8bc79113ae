package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4" // Import JWT library

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
)

// --- Error Definitions ---
var (
	ErrTokenGeneration = errors.New("failed to generate authentication token")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

// DefaultProvider is used by the development login when none is given.
const DefaultProvider = "dev"

// --- Service Interface ---
type AuthService interface {
	// DevLogin upserts the user behind (provider, providerUserID) and signs a token.
	DevLogin(ctx context.Context, provider, providerUserID string, displayName *string) (token string, user *domain.User, err error)
	// ParseToken validates a bearer token and returns the user id it carries.
	ParseToken(tokenString string) (string, error)
}

// --- Service Implementation ---

// authService implements the AuthService interface.
type authService struct {
	userRepo      repository.UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
	now           func() time.Time
}

// NewAuthService creates a new instance of authService.
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExpiration time.Duration) (AuthService, error) {
	if jwtSecret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if jwtExpiration <= 0 {
		jwtExpiration = 7 * 24 * time.Hour
	}
	return &authService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		now:           time.Now,
	}, nil
}

func (s *authService) DevLogin(ctx context.Context, provider, providerUserID string, displayName *string) (string, *domain.User, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		provider = DefaultProvider
	}
	providerUserID = strings.TrimSpace(providerUserID)
	if providerUserID == "" {
		return "", nil, fmt.Errorf("%w: providerUserId is required", domain.ErrInvalidInput)
	}

	user, err := s.userRepo.UpsertIdentity(ctx, domain.Identity{
		Provider:       provider,
		ProviderUserID: providerUserID,
		DisplayName:    displayName,
	})
	if err != nil {
		return "", nil, err
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return "", nil, ErrTokenGeneration
	}
	return token, user, nil
}

// --- JWT Helper ---

// Claims defines the structure of the JWT payload.
type Claims struct {
	UserID string `json:"uid"` // User ID
	jwt.RegisteredClaims
}

// generateJWT creates a new JWT token for the given user.
func (s *authService) generateJWT(user *domain.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "pb-assistant",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *authService) ParseToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the alg is what we expect:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token has expired", ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("%w: missing user id claim", ErrInvalidToken)
	}
	return userID, nil
}

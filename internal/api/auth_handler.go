package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/service"
)

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// --- Request/Response Structs ---

type DevLoginRequest struct {
	Provider       string  `json:"provider"`
	ProviderUserID string  `json:"providerUserId" binding:"required"`
	DisplayName    *string `json:"displayName"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// --- Handler Methods ---

// DevLogin godoc
// @Summary Development login
// @Description Upserts a user for the given identity and returns a JWT. Only mounted when dev login is enabled.
// @Tags Auth
// @Accept json
// @Produce json
// @Param identity body DevLoginRequest true "Identity"
// @Success 200 {object} LoginResponse "Login successful"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /auth/dev-login [post]
func (h *AuthHandler) DevLogin(c *gin.Context) {
	var req DevLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	token, user, err := h.authService.DevLogin(c.Request.Context(), req.Provider, req.ProviderUserID, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token, User: user})
}

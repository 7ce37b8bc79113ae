package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/service"
	"pbassistant/backend/internal/storage"
)

// respondError maps service errors onto HTTP statuses. Unclassified errors
// are attached to the context for the request logger and hidden from the client.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrNoPlan),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrWorkoutNotFound),
		errors.Is(err, storage.ErrArchiveDisabled):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrPlanAccessDenied),
		errors.Is(err, service.ErrWorkoutAccessDenied):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMalformedPlan):
		abortWithError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrProvider):
		_ = c.Error(err)
		abortWithError(c, http.StatusBadGateway, "Plan generation provider failed")
	default:
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

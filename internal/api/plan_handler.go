package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/service"
)

// PlanHandler serves plan generation and retrieval.
type PlanHandler struct {
	planService service.PlanService
}

func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

// CreatePlan godoc
// @Summary Generate a training plan
// @Description Builds a prompt from the profile and goal, generates a plan and persists its workouts.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param goal body CreatePlanRequest true "Race goal"
// @Success 201 {object} CreatePlanResponse
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 404 {object} gin.H "User not found"
// @Failure 422 {object} gin.H "Provider returned a malformed plan"
// @Failure 502 {object} gin.H "Provider failed"
// @Router /plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	res, err := h.planService.CreatePlan(c.Request.Context(), userID, req.Goal())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreatePlanResponse{
		Plan:        MapPlanToResponse(res.Plan),
		Workouts:    MapWorkoutsToResponse(res.Workouts),
		RawResponse: res.RawResponse,
	})
}

// GetLatestPlan godoc
// @Summary Latest completed plan
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} LatestPlanResponse
// @Failure 404 {object} LatestPlanResponse "No completed plan yet"
// @Router /plans/latest [get]
func (h *PlanHandler) GetLatestPlan(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	res, err := h.planService.GetLatestPlan(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoPlan) {
			c.JSON(http.StatusNotFound, LatestPlanResponse{Plan: nil, Workouts: []WorkoutResponse{}})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapLatestPlanToResponse(res))
}

// ListPlans godoc
// @Summary List own plans
// @Description Newest first. Filter with ?status=completed,failed
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Success 200 {array} PlanResponse
// @Failure 400 {object} gin.H "Unknown status"
// @Router /plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var statuses []domain.PlanStatus
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if s := strings.ToLower(strings.TrimSpace(raw)); s != "" {
			statuses = append(statuses, domain.PlanStatus(s))
		}
	}

	plans, err := h.planService.ListPlans(c.Request.Context(), userID, statuses...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlansToResponse(plans))
}

// GetPlanArchive godoc
// @Summary Download link for the archived provider response
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} gin.H "url"
// @Failure 403 {object} gin.H "Plan belongs to another user"
// @Failure 404 {object} gin.H "Plan not found or archive disabled"
// @Router /plans/{planId}/archive [get]
func (h *PlanHandler) GetPlanArchive(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	url, err := h.planService.GetPlanArchiveURL(c.Request.Context(), userID, c.Param("planId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expiresInSeconds": int(service.ArchiveURLExpiry.Seconds())})
}

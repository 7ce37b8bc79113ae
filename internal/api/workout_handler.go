package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pbassistant/backend/internal/service"
)

// WorkoutHandler records check-ins and logs against scheduled workouts.
type WorkoutHandler struct {
	workoutService service.WorkoutService
}

func NewWorkoutHandler(workoutService service.WorkoutService) *WorkoutHandler {
	return &WorkoutHandler{workoutService: workoutService}
}

// CheckIn godoc
// @Summary Pre-run check-in
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workout ID"
// @Param checkin body CheckInRequest true "Sleep quality and body feel (1-10)"
// @Success 200 {object} WorkoutEnvelope
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 403 {object} gin.H "Workout belongs to another user"
// @Failure 404 {object} gin.H "Workout not found"
// @Router /workouts/{id}/checkin [post]
func (h *WorkoutHandler) CheckIn(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	w, err := h.workoutService.CheckIn(c.Request.Context(), userID, c.Param("id"), service.CheckInInput{
		SleepQuality: req.SleepQuality,
		BodyFeel:     req.BodyFeel,
		Status:       req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, WorkoutEnvelope{Workout: MapWorkoutToResponse(w)})
}

// Log godoc
// @Summary Post-run log
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workout ID"
// @Param log body LogRequest true "Difficulty (1-10), notes and status"
// @Success 200 {object} WorkoutEnvelope
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 403 {object} gin.H "Workout belongs to another user"
// @Failure 404 {object} gin.H "Workout not found"
// @Router /workouts/{id}/log [post]
func (h *WorkoutHandler) Log(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var req LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	w, err := h.workoutService.Log(c.Request.Context(), userID, c.Param("id"), service.LogInput{
		Difficulty: req.Difficulty,
		Notes:      req.Notes,
		Status:     req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, WorkoutEnvelope{Workout: MapWorkoutToResponse(w)})
}

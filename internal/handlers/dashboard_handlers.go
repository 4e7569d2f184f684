package handlers

import (
	"net/http"
	"strconv"
	"time"

	"achieveit/internal/apperr"
	"achieveit/internal/handlers/dto"
	"achieveit/internal/logger"
	"achieveit/internal/middleware"
	"achieveit/internal/models/goal"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	Dashboards DashboardProvider
}

func NewDashboardHandler(dashboards DashboardProvider) DashboardHandler {
	return DashboardHandler{Dashboards: dashboards}
}

// controller resolves the caller's dashboard or answers the request.
func (h *DashboardHandler) controller(w http.ResponseWriter, r *http.Request) (Dashboard, bool) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		handleAppError(w, r, apperr.New(apperr.CodeUnauthenticated, "You must be logged in."), "")
		return nil, false
	}
	c, err := h.Dashboards(sess)
	if err != nil {
		handleAppError(w, r, err, "could not open dashboard")
		return nil, false
	}
	return c, true
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		logger.Warn("HTTP: empty id", zap.String("client_ip", r.RemoteAddr))
		handleAppError(w, r, apperr.NewValidation("id", "must not be empty"), "")
		return "", false
	}
	return id, true
}

func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	responseWithBody(w, http.StatusOK, c.View())
}

func (h *DashboardHandler) GetGoals(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	responseWithBody(w, http.StatusOK, c.Goals())
}

func (h *DashboardHandler) GetGoalTemplates(w http.ResponseWriter, r *http.Request) {
	responseWithJSON(w, http.StatusOK, toPayload("templates", goal.Templates()))
}

func (h *DashboardHandler) PostGoal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req dto.GoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := c.SaveGoal(r.Context(), req.Draft(""))
	if err != nil {
		handleAppError(w, r, err, "Could not save the goal.")
		return
	}

	logger.Info("HTTP_OUT: goal created",
		zap.String("goal_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))
	responseWithJSON(w, http.StatusCreated, toPayload("id", id))
}

func (h *DashboardHandler) PutGoal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.GoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := c.SaveGoal(r.Context(), req.Draft(id)); err != nil {
		handleAppError(w, r, err, "Could not save the goal.")
		return
	}

	logger.Info("HTTP_OUT: goal updated",
		zap.String("goal_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))
	responseWithJSON(w, http.StatusOK, toPayload("id", id))
}

func (h *DashboardHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := c.DeleteGoal(r.Context(), id); err != nil {
		handleAppError(w, r, err, "Could not delete the goal.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DashboardHandler) ToggleGoal(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	done, err := c.ToggleGoal(r.Context(), id)
	if err != nil {
		handleAppError(w, r, err, "Could not update the goal.")
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("id", id), toPayload("isCompleted", done))
}

func (h *DashboardHandler) GetHabits(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	responseWithBody(w, http.StatusOK, c.Habits())
}

func (h *DashboardHandler) PostHabit(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req dto.HabitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := c.CreateHabit(r.Context(), req.Name)
	if err != nil {
		handleAppError(w, r, err, "Could not create habit.")
		return
	}
	responseWithJSON(w, http.StatusCreated, toPayload("id", id))
}

func (h *DashboardHandler) PutHabitDay(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		logger.Warn("HTTP: bad day parameter", zap.Error(err), zap.String("client_ip", r.RemoteAddr))
		handleAppError(w, r, apperr.NewValidation("day", "must be a number from 0 to 6"), "")
		return
	}
	var req dto.HabitDayRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := c.SetHabitDay(r.Context(), id, day, req.Value); err != nil {
		handleAppError(w, r, err, "Could not update habit.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DashboardHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	responseWithBody(w, http.StatusOK, c.Profile(r.Context()))
}

func (h *DashboardHandler) PutStepGoal(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req dto.StepGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := c.SetStepGoal(r.Context(), req.StepGoal); err != nil {
		handleAppError(w, r, err, "Could not update your step goal.")
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("stepGoal", req.StepGoal))
}

// ConnectFit blocks until the consent popup is answered or abandoned.
func (h *DashboardHandler) ConnectFit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.ConnectFit(r.Context()); err != nil {
		handleAppError(w, r, err, "Could not connect Google Fit.")
		return
	}

	view := c.View()
	logger.Info("HTTP_OUT: google fit connect finished",
		zap.Bool("linked", view.Fit.Linked),
		zap.Duration("ms", time.Since(start)))
	responseWithBody(w, http.StatusOK, view.Fit)
}

func (h *DashboardHandler) DisconnectFit(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.DisconnectFit(r.Context()); err != nil {
		handleAppError(w, r, err, "Could not disconnect Google Fit.")
		return
	}
	responseWithBody(w, http.StatusOK, c.View().Fit)
}

func (h *DashboardHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.RefreshToday(r.Context()); err != nil {
		handleAppError(w, r, err, "Could not load steps.")
		return
	}
	responseWithBody(w, http.StatusOK, c.Today())
}

func (h *DashboardHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.RefreshHealth(r.Context()); err != nil {
		handleAppError(w, r, err, "Could not load health data.")
		return
	}
	responseWithBody(w, http.StatusOK, c.Health())
}

func (h *DashboardHandler) GetWeeklySteps(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	steps, err := c.WeeklySteps(r.Context())
	if err != nil {
		handleAppError(w, r, err, "Could not load steps.")
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("days", steps))
}

func (h *DashboardHandler) PostSuggestion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req dto.SuggestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	text, err := c.Suggest(r.Context(), req.CurrentGoals, req.PastPerformance)
	if err != nil {
		handleAppError(w, r, err, "Failed to get AI suggestions. Please try again.")
		return
	}

	logger.Info("HTTP_OUT: suggestion generated",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))
	responseWithJSON(w, http.StatusOK, toPayload("suggestion", text))
}

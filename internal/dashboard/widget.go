package dashboard

import (
	"achieveit/internal/apperr"
	"achieveit/internal/fit"
	"achieveit/internal/models/goal"
	"achieveit/internal/models/habit"
	"achieveit/internal/models/user"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

const (
	WidgetGoals   = "goals"
	WidgetHabits  = "habits"
	WidgetHealth  = "health"
	WidgetToday   = "today"
	WidgetProfile = "profile"
)

// Widget is the render state of one dashboard panel. On error Data keeps
// the last good value, except for health which is reset.
type Widget[T any] struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   T      `json:"data"`
}

func loading[T any]() Widget[T] {
	return Widget[T]{Status: StatusLoading}
}

func ready[T any](data T) Widget[T] {
	return Widget[T]{Status: StatusReady, Data: data}
}

func failed[T any](prev T, err error) Widget[T] {
	return Widget[T]{Status: StatusError, Error: message(err), Data: prev}
}

func message(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := apperr.As(err); ok {
		return appErr.Message
	}
	return err.Error()
}

// Health is the body metrics panel.
type Health struct {
	Series  fit.WeeklySeries  `json:"series"`
	Metrics fit.HealthMetrics `json:"metrics"`
}

type FitState struct {
	Linked    bool   `json:"linked"`
	LinkState string `json:"linkState"`
}

// View is a point-in-time copy of the whole dashboard.
type View struct {
	Goals   Widget[[]goal.Goal]       `json:"goals"`
	Habits  Widget[[]habit.Habit]     `json:"habits"`
	Health  Widget[*Health]           `json:"health"`
	Today   Widget[*fit.TodaySummary] `json:"today"`
	Profile Widget[*user.Profile]     `json:"profile"`
	Stats   goal.Stats                `json:"stats"`
	Quote   string                    `json:"quote"`
	Fit     FitState                  `json:"fit"`
}

// WidgetEvent is published on the session stream when a panel changes.
type WidgetEvent struct {
	Name   string `json:"name"`
	Widget any    `json:"widget"`
}

package dto

import (
	"time"

	"achieveit/internal/auth"
	"achieveit/internal/models/goal"
	"achieveit/internal/models/user"
)

type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoalRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    goal.Category `json:"category"`
	Priority    goal.Priority `json:"priority"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
}

func (g GoalRequest) Draft(id string) goal.Draft {
	return goal.Draft{
		ID:          id,
		Title:       g.Title,
		Description: g.Description,
		Category:    g.Category,
		Priority:    g.Priority,
		DueDate:     g.DueDate,
	}
}

type HabitRequest struct {
	Name string `json:"name"`
}

type HabitDayRequest struct {
	Value bool `json:"value"`
}

type StepGoalRequest struct {
	StepGoal int `json:"stepGoal"`
}

type SuggestionRequest struct {
	CurrentGoals    string `json:"currentGoals"`
	PastPerformance string `json:"pastPerformance"`
}

type SessionResponse struct {
	Token     string         `json:"token"`
	AuthState auth.AuthState `json:"authState"`
	LinkState auth.LinkState `json:"linkState"`
	User      *user.User     `json:"user,omitempty"`
}

func FromSession(sess *auth.Session, token string) SessionResponse {
	resp := SessionResponse{
		Token:     token,
		AuthState: sess.AuthState(),
		LinkState: sess.LinkState(),
	}
	if u, ok := sess.User(); ok {
		resp.User = &u
	}
	return resp
}

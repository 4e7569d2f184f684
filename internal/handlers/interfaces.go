package handlers

import (
	"context"

	"achieveit/internal/auth"
	"achieveit/internal/dashboard"
	"achieveit/internal/fit"
	"achieveit/internal/identity"
	"achieveit/internal/models/goal"
	"achieveit/internal/models/habit"
	"achieveit/internal/models/user"
)

type AuthService interface {
	StartSession() *auth.Session
	Lookup(id string) (*auth.Session, bool)
	SignUpWithEmail(ctx context.Context, name, email, password string) (*auth.Session, error)
	SignInWithEmail(ctx context.Context, email, password string) (*auth.Session, error)
	SignInWithGoogle(ctx context.Context, sess *auth.Session, cred *identity.FederatedCredential) (*auth.Session, error)
	SignOut(ctx context.Context, sess *auth.Session) error
	Broker() *auth.Broker
}

type TokenIssuer interface {
	Issue(sessionID, uid string) (string, error)
}

// Dashboard is the per-session controller behind the /api surface.
type Dashboard interface {
	View() dashboard.View

	Goals() dashboard.Widget[[]goal.Goal]
	SaveGoal(ctx context.Context, d goal.Draft) (string, error)
	DeleteGoal(ctx context.Context, id string) error
	ToggleGoal(ctx context.Context, id string) (bool, error)

	Habits() dashboard.Widget[[]habit.Habit]
	CreateHabit(ctx context.Context, name string) (string, error)
	SetHabitDay(ctx context.Context, habitID string, day int, value bool) error

	Profile(ctx context.Context) dashboard.Widget[*user.Profile]
	SetStepGoal(ctx context.Context, steps int) error

	RefreshHealth(ctx context.Context) error
	Health() dashboard.Widget[*dashboard.Health]
	RefreshToday(ctx context.Context) error
	Today() dashboard.Widget[*fit.TodaySummary]
	WeeklySteps(ctx context.Context) ([]fit.DailySteps, error)
	ConnectFit(ctx context.Context) error
	DisconnectFit(ctx context.Context) error

	Suggest(ctx context.Context, currentGoals, pastPerformance string) (string, error)
}

var _ Dashboard = (*dashboard.Controller)(nil)

// DashboardProvider returns the controller of a signed-in session.
type DashboardProvider func(sess *auth.Session) (Dashboard, error)

// Registry adapts a dashboard registry to a DashboardProvider.
func Registry(r *dashboard.Registry) DashboardProvider {
	return func(sess *auth.Session) (Dashboard, error) {
		c, err := r.For(sess)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

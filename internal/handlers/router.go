package handlers

import (
	"net/http"

	"achieveit/internal/auth"
	"achieveit/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      int
	CookieName     string
}

func NewRouter(cfg RouterConfig, authH *AuthHandler, dashH *DashboardHandler, healthH *HealthHandler,
	tokens middleware.TokenParser, sessions middleware.SessionLookup) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.RateLimit(cfg.RateLimit))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.Authenticate(cfg.CookieName, tokens, sessions))

	r.Get("/health", healthH.HealthCheck) // GET /health

	r.Group(func(r chi.Router) {
		r.Use(middleware.GuardPages)

		r.Get(auth.PathHome, Page("home"))
		r.Get(auth.PathLogin, Page("login"))
		r.Get(auth.PathSignup, Page("signup"))
		r.Get(auth.PathDashboard, Page("dashboard"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authH.SignUp)  // POST /auth/signup
		r.Post("/login", authH.Login)    // POST /auth/login
		r.Post("/logout", authH.Logout)  // POST /auth/logout
		r.Get("/session", authH.Session) // GET /auth/session

		r.Get("/google/signin", authH.GoogleSignIn)     // GET /auth/google/signin
		r.Get("/google/callback", authH.GoogleCallback) // GET /auth/google/callback
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireSession)

		r.Get("/dashboard", dashH.GetDashboard) // GET /api/dashboard
		r.Get("/events", dashH.Events)          // GET /api/events

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", dashH.GetGoals)                  // GET /api/goals
			r.Post("/", dashH.PostGoal)                 // POST /api/goals
			r.Get("/templates", dashH.GetGoalTemplates) // GET /api/goals/templates

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", dashH.PutGoal)           // PUT /api/goals/{id}
				r.Delete("/", dashH.DeleteGoal)     // DELETE /api/goals/{id}
				r.Post("/toggle", dashH.ToggleGoal) // POST /api/goals/{id}/toggle
			})
		})

		r.Route("/habits", func(r chi.Router) {
			r.Get("/", dashH.GetHabits)                  // GET /api/habits
			r.Post("/", dashH.PostHabit)                 // POST /api/habits
			r.Put("/{id}/days/{day}", dashH.PutHabitDay) // PUT /api/habits/{id}/days/{day}
		})

		r.Get("/profile", dashH.GetProfile)            // GET /api/profile
		r.Put("/profile/step-goal", dashH.PutStepGoal) // PUT /api/profile/step-goal

		r.Route("/fit", func(r chi.Router) {
			r.Post("/connect", dashH.ConnectFit)         // POST /api/fit/connect
			r.Post("/disconnect", dashH.DisconnectFit)   // POST /api/fit/disconnect
			r.Get("/today", dashH.GetToday)              // GET /api/fit/today
			r.Get("/health", dashH.GetHealth)            // GET /api/fit/health
			r.Get("/steps/weekly", dashH.GetWeeklySteps) // GET /api/fit/steps/weekly
		})

		r.Post("/suggestions", dashH.PostSuggestion) // POST /api/suggestions
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responseWithError(w, http.StatusNotFound, "NOT_FOUND", "no such route")
	})

	return r
}

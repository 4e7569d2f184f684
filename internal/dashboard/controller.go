// Package dashboard drives the signed-in dashboard of one session: it owns
// the live goal and habit stores, the Google Fit panels and the user's
// intents, and pushes every change to the session's event stream.
package dashboard

import (
	"context"
	"fmt"
	"sync"

	"achieveit/internal/apperr"
	"achieveit/internal/auth"
	"achieveit/internal/events"
	"achieveit/internal/fit"
	"achieveit/internal/logger"
	"achieveit/internal/models/goal"
	"achieveit/internal/models/habit"
	"achieveit/internal/models/user"
	repo "achieveit/internal/repository"
	"achieveit/internal/service"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type FitClient interface {
	FetchToday(ctx context.Context, token string) (fit.TodaySummary, error)
	FetchWeeklySeries(ctx context.Context, token string) (fit.WeeklySeries, error)
	FetchLatestSnapshot(ctx context.Context, token string) (fit.HealthMetrics, error)
	FetchWeeklySteps(ctx context.Context, token string) ([]fit.DailySteps, error)
}

type Suggester interface {
	Suggest(ctx context.Context, currentGoals, pastPerformance string) (string, error)
}

type ProfileStore interface {
	Get(ctx context.Context, uid string) (user.Profile, error)
	SetStepGoal(ctx context.Context, uid string, goal int) error
}

// Linker connects and disconnects Google Fit for a session.
type Linker interface {
	ConnectGoogleFit(ctx context.Context, sess *auth.Session) error
	DisconnectGoogleFit(ctx context.Context, sess *auth.Session) error
}

type Deps struct {
	Store    repo.Store
	Profiles ProfileStore
	Fit      FitClient
	Suggest  Suggester
	Links    Linker
}

type Controller struct {
	deps   Deps
	sess   *auth.Session
	uid    string
	goals  *service.GoalStore
	habits *service.HabitStore
	quote  string

	ctx    context.Context
	cancel context.CancelFunc
	bg     conc.WaitGroup

	mu        sync.Mutex
	health    Widget[*Health]
	today     Widget[*fit.TodaySummary]
	profile   Widget[*user.Profile]
	goalsErr  error
	habitsErr error
	closeOnce sync.Once
}

func newController(deps Deps, sess *auth.Session, u user.User) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		deps:    deps,
		sess:    sess,
		uid:     u.UID,
		quote:   randomQuote(),
		ctx:     ctx,
		cancel:  cancel,
		health:  ready[*Health](nil),
		today:   ready[*fit.TodaySummary](nil),
		profile: loading[*user.Profile](),
	}
	c.goals = service.NewGoalStore(deps.Store, u.UID, service.Hooks{
		Changed: c.goalsChanged,
		Failed:  c.backgroundFailed,
	})
	c.habits = service.NewHabitStore(deps.Store, u.UID, service.Hooks{
		Changed: c.habitsChanged,
		Failed:  c.backgroundFailed,
	})
	return c
}

// open starts both subscriptions and the first profile and Fit loads.
func (c *Controller) open() {
	if err := c.goals.Open(c.ctx); err != nil {
		c.notifyError("Could not fetch goals.")
	}
	if err := c.habits.Open(c.ctx); err != nil {
		c.notifyError("Could not fetch habits.")
	}

	c.bg.Go(func() {
		c.loadProfile(c.ctx)
	})
	if _, ok := c.sess.FitToken(); ok {
		c.bg.Go(func() {
			_ = c.RefreshHealth(c.ctx)
			_ = c.RefreshToday(c.ctx)
		})
	}
}

// Close stops the subscriptions and waits for background loads.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.goals.Close()
		c.habits.Close()
		c.bg.Wait()
		logger.Debug("Dashboard: controller closed", zap.String("uid", c.uid), zap.String("session_id", c.sess.ID))
	})
}

func (c *Controller) publish(name string, w any) {
	c.sess.Events.Publish(events.Event{Type: events.TypeWidget, Data: WidgetEvent{Name: name, Widget: w}})
}

func (c *Controller) notifyError(msg string) {
	c.sess.Events.Notify(events.LevelError, "Error", msg)
}

func (c *Controller) notifyInfo(title, msg string) {
	c.sess.Events.Notify(events.LevelInfo, title, msg)
}

func (c *Controller) goalsWidget() Widget[[]goal.Goal] {
	goals, ok := c.goals.List()
	if err := c.goals.Err(); err != nil {
		return failed(goals, err)
	}
	if !ok {
		return loading[[]goal.Goal]()
	}
	return ready(goals)
}

func (c *Controller) habitsWidget() Widget[[]habit.Habit] {
	habits, ok := c.habits.List()
	if err := c.habits.Err(); err != nil {
		return failed(habits, err)
	}
	if !ok {
		return loading[[]habit.Habit]()
	}
	return ready(habits)
}

func (c *Controller) goalsChanged() {
	err := c.goals.Err()
	c.mu.Lock()
	fresh := err != nil && c.goalsErr == nil
	c.goalsErr = err
	c.mu.Unlock()
	if fresh {
		c.notifyError("Could not fetch goals.")
	}
	c.publish(WidgetGoals, c.goalsWidget())
}

func (c *Controller) habitsChanged() {
	err := c.habits.Err()
	c.mu.Lock()
	fresh := err != nil && c.habitsErr == nil
	c.habitsErr = err
	c.mu.Unlock()
	if fresh {
		c.notifyError("Could not fetch habits.")
	}
	c.publish(WidgetHabits, c.habitsWidget())
}

func (c *Controller) backgroundFailed(err error) {
	logger.Error("Dashboard: background write failed", err, zap.String("uid", c.uid))
	c.notifyError(message(err))
}

// View returns the current state of every panel.
func (c *Controller) View() View {
	linkState := c.sess.LinkState()
	_, linked := c.sess.FitToken()

	c.mu.Lock()
	health, today, profile := c.health, c.today, c.profile
	c.mu.Unlock()

	return View{
		Goals:   c.goalsWidget(),
		Habits:  c.habitsWidget(),
		Health:  health,
		Today:   today,
		Profile: profile,
		Stats:   c.goals.Stats(),
		Quote:   c.quote,
		Fit:     FitState{Linked: linked, LinkState: string(linkState)},
	}
}

func (c *Controller) Goals() Widget[[]goal.Goal] {
	return c.goalsWidget()
}

func (c *Controller) Habits() Widget[[]habit.Habit] {
	return c.habitsWidget()
}

// SaveGoal creates or updates a goal and returns its id.
func (c *Controller) SaveGoal(ctx context.Context, d goal.Draft) (string, error) {
	id, err := c.goals.Save(ctx, d)
	if err != nil {
		if apperr.Is(err, apperr.CodeValidation) {
			c.notifyError(message(err))
		} else {
			c.notifyError("Could not save the goal.")
		}
		return "", err
	}
	return id, nil
}

func (c *Controller) DeleteGoal(ctx context.Context, id string) error {
	if err := c.goals.Remove(ctx, id); err != nil {
		c.notifyError("Could not delete the goal.")
		return err
	}
	c.notifyInfo("Goal Deleted", "The goal has been removed.")
	return nil
}

// ToggleGoal flips the completion of a goal from the live list.
func (c *Controller) ToggleGoal(ctx context.Context, id string) (bool, error) {
	g, ok := c.goals.Get(id)
	if !ok {
		return false, apperr.NewNotFound("goal", id)
	}
	done, err := c.goals.ToggleComplete(ctx, g)
	if err != nil {
		c.notifyError("Could not update the goal.")
		return false, err
	}
	if done {
		c.notifyInfo("Milestone Achieved!", fmt.Sprintf("You've completed your goal: %q", g.Title))
	}
	return done, nil
}

func (c *Controller) CreateHabit(ctx context.Context, name string) (string, error) {
	id, err := c.habits.Create(ctx, name)
	if err != nil {
		if apperr.Is(err, apperr.CodeValidation) {
			c.notifyError(message(err))
		} else {
			c.notifyError("Could not create habit.")
		}
		return "", err
	}
	return id, nil
}

func (c *Controller) SetHabitDay(ctx context.Context, habitID string, day int, value bool) error {
	if err := c.habits.SetDay(ctx, habitID, day, value); err != nil {
		c.notifyError("Could not update habit.")
		return err
	}
	return nil
}

func (c *Controller) Suggest(ctx context.Context, currentGoals, pastPerformance string) (string, error) {
	text, err := c.deps.Suggest.Suggest(ctx, currentGoals, pastPerformance)
	if err != nil {
		c.notifyError(message(err))
		return "", err
	}
	return text, nil
}

func (c *Controller) loadProfile(ctx context.Context) {
	p, err := c.deps.Profiles.Get(ctx, c.uid)

	c.mu.Lock()
	if err != nil {
		c.profile = failed(c.profile.Data, err)
	} else {
		c.profile = ready(&p)
	}
	w := c.profile
	c.mu.Unlock()

	if err != nil {
		logger.Warn("Dashboard: could not load profile", zap.String("uid", c.uid), zap.Error(err))
	}
	c.publish(WidgetProfile, w)
}

func (c *Controller) Profile(ctx context.Context) Widget[*user.Profile] {
	c.mu.Lock()
	w := c.profile
	c.mu.Unlock()
	if w.Status != StatusReady {
		c.loadProfile(ctx)
		c.mu.Lock()
		w = c.profile
		c.mu.Unlock()
	}
	return w
}

func (c *Controller) SetStepGoal(ctx context.Context, steps int) error {
	if err := c.deps.Profiles.SetStepGoal(ctx, c.uid, steps); err != nil {
		if apperr.Is(err, apperr.CodeValidation) {
			c.notifyError(message(err))
		} else {
			c.notifyError("Could not update your step goal.")
		}
		return err
	}

	c.mu.Lock()
	if c.profile.Data != nil {
		p := *c.profile.Data
		p.StepGoal = steps
		c.profile = ready(&p)
	}
	w := c.profile
	c.mu.Unlock()

	c.publish(WidgetProfile, w)
	c.notifyInfo("Goal Updated", fmt.Sprintf("Your new daily step goal is %s.", fit.FormatCount(steps)))
	return nil
}

// RefreshHealth reloads the weekly series and the latest body metrics
// together. On failure the panel is reset to unknown.
func (c *Controller) RefreshHealth(ctx context.Context) error {
	token, ok := c.sess.FitToken()
	if !ok {
		c.setHealth(ready[*Health](nil))
		return nil
	}

	c.mu.Lock()
	c.health = loading[*Health]()
	c.mu.Unlock()
	c.publish(WidgetHealth, loading[*Health]())

	var (
		series  fit.WeeklySeries
		metrics fit.HealthMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		series, err = c.deps.Fit.FetchWeeklySeries(gctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		metrics, err = c.deps.Fit.FetchLatestSnapshot(gctx, token)
		return err
	})

	if err := g.Wait(); err != nil {
		c.setHealth(failed[*Health](nil, err))
		c.notifyError(message(err))
		return err
	}

	metrics.StepCount = series.TodaySteps
	c.setHealth(ready(&Health{Series: series, Metrics: metrics}))
	return nil
}

func (c *Controller) setHealth(w Widget[*Health]) {
	c.mu.Lock()
	c.health = w
	c.mu.Unlock()
	c.publish(WidgetHealth, w)
}

func (c *Controller) Health() Widget[*Health] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}

// RefreshToday reloads today's activity. A failure keeps the last summary.
func (c *Controller) RefreshToday(ctx context.Context) error {
	token, ok := c.sess.FitToken()
	if !ok {
		c.setToday(ready[*fit.TodaySummary](nil))
		return nil
	}

	summary, err := c.deps.Fit.FetchToday(ctx, token)
	if err != nil {
		c.mu.Lock()
		w := failed(c.today.Data, err)
		c.mu.Unlock()
		c.setToday(w)
		c.notifyError("Could not load steps. Re-sync or check permissions.")
		return err
	}
	c.setToday(ready(&summary))
	return nil
}

func (c *Controller) setToday(w Widget[*fit.TodaySummary]) {
	c.mu.Lock()
	c.today = w
	c.mu.Unlock()
	c.publish(WidgetToday, w)
}

func (c *Controller) Today() Widget[*fit.TodaySummary] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.today
}

func (c *Controller) WeeklySteps(ctx context.Context) ([]fit.DailySteps, error) {
	token, ok := c.sess.FitToken()
	if !ok {
		return nil, apperr.NewFetchFailed(nil)
	}
	steps, err := c.deps.Fit.FetchWeeklySteps(ctx, token)
	if err != nil {
		c.notifyError(message(err))
		return nil, err
	}
	return steps, nil
}

// ConnectFit runs the Google Fit link flow and loads the Fit panels once
// a token is held.
func (c *Controller) ConnectFit(ctx context.Context) error {
	if err := c.deps.Links.ConnectGoogleFit(ctx, c.sess); err != nil {
		return err
	}
	if _, ok := c.sess.FitToken(); !ok {
		return nil
	}
	_ = c.RefreshHealth(ctx)
	_ = c.RefreshToday(ctx)
	return nil
}

func (c *Controller) DisconnectFit(ctx context.Context) error {
	if err := c.deps.Links.DisconnectGoogleFit(ctx, c.sess); err != nil {
		return err
	}
	c.setHealth(ready[*Health](nil))
	c.setToday(ready[*fit.TodaySummary](nil))
	return nil
}

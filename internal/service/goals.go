package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"achieveit/internal/apperr"
	"achieveit/internal/logger"
	"achieveit/internal/models/goal"
	repo "achieveit/internal/repository"

	"go.uber.org/zap"
)

// GoalStore mirrors users/{uid}/goals, newest first. Writes go straight to
// the document store; the cached list only changes when the subscription
// delivers a snapshot.
type GoalStore struct {
	store repo.Store
	uid   string
	hooks Hooks
	now   func() time.Time

	mu    sync.RWMutex
	goals []goal.Goal
	ready bool
	err   error
	sub   *repo.Subscription
}

func NewGoalStore(store repo.Store, uid string, hooks Hooks) *GoalStore {
	return &GoalStore{
		store: repo.ForUser(store, uid),
		uid:   uid,
		hooks: hooks,
		now:   time.Now,
	}
}

func (s *GoalStore) collection() string {
	return repo.GoalsCollection(s.uid)
}

func (s *GoalStore) Open(ctx context.Context) error {
	sub, err := s.store.Subscribe(ctx, repo.Query{
		Collection: s.collection(),
		OrderBy:    "createdAt",
		Descending: true,
	})
	if err != nil {
		err = repo.AppError(err, "goals", "")
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	go follow(sub, "goals", s.apply, s.fail)
	return nil
}

func (s *GoalStore) apply(goals []goal.Goal, _ repo.Snapshot) {
	s.mu.Lock()
	s.goals = goals
	s.ready = true
	s.err = nil
	s.mu.Unlock()
	s.hooks.changed()
}

func (s *GoalStore) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.hooks.changed()
}

// List returns the cached goals and whether a snapshot has arrived yet.
func (s *GoalStore) List() ([]goal.Goal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.goals), s.ready
}

// Err is the error that ended the subscription.
func (s *GoalStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *GoalStore) Get(id string) (goal.Goal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.goals {
		if g.ID == id {
			return g, true
		}
	}
	return goal.Goal{}, false
}

func (s *GoalStore) Stats() goal.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return goal.Summarize(s.goals)
}

// Save updates every mutable field of an existing goal, or creates a new
// one when d has no id. It returns the goal id.
func (s *GoalStore) Save(ctx context.Context, d goal.Draft) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	if d.ID != "" {
		err := s.store.Update(ctx, repo.Join(s.collection(), d.ID), d.MutableFields())
		if err != nil {
			logger.Error("Service: error saving goal", err, zap.String("goal_id", d.ID))
			return "", repo.AppError(err, "goal", d.ID)
		}
		return d.ID, nil
	}

	id := s.store.NewID()
	if err := s.store.Set(ctx, repo.Join(s.collection(), id), d.NewFields(s.now()), false); err != nil {
		logger.Error("Service: error creating goal", err, zap.String("uid", s.uid))
		return "", repo.AppError(err, "goal", id)
	}
	logger.Info("Service: goal created", zap.String("goal_id", id), zap.String("uid", s.uid))
	return id, nil
}

func (s *GoalStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return apperr.NewValidation("id", "must not be empty")
	}
	if err := s.store.Delete(ctx, repo.Join(s.collection(), id)); err != nil {
		logger.Error("Service: error deleting goal", err, zap.String("goal_id", id))
		return repo.AppError(err, "goal", id)
	}
	return nil
}

// ToggleComplete flips g's completion and reports whether it is now complete.
func (s *GoalStore) ToggleComplete(ctx context.Context, g goal.Goal) (bool, error) {
	if g.ID == "" {
		return false, apperr.NewValidation("id", "must not be empty")
	}
	done, _ := g.Toggled()
	if err := s.store.Update(ctx, repo.Join(s.collection(), g.ID), g.ToggleFields()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, apperr.NewNotFound("goal", g.ID)
		}
		logger.Error("Service: error toggling goal", err, zap.String("goal_id", g.ID))
		return false, repo.AppError(err, "goal", g.ID)
	}
	return done, nil
}

func (s *GoalStore) Close() {
	s.mu.RLock()
	sub := s.sub
	s.mu.RUnlock()
	if sub != nil {
		sub.Close()
	}
}

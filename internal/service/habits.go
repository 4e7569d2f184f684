package service

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"achieveit/internal/apperr"
	"achieveit/internal/logger"
	"achieveit/internal/models/habit"
	repo "achieveit/internal/repository"

	"go.uber.org/zap"
)

// HabitStore mirrors users/{uid}/habits. The first snapshot of each
// activation seeds the default habits when the collection is empty and
// no local write is in flight.
type HabitStore struct {
	store repo.Store
	uid   string
	hooks Hooks

	pending atomic.Int32

	mu        sync.RWMutex
	habits    []habit.Habit
	ready     bool
	err       error
	evaluated bool
	sub       *repo.Subscription
	seeding   sync.WaitGroup
}

func NewHabitStore(store repo.Store, uid string, hooks Hooks) *HabitStore {
	return &HabitStore{
		store: repo.ForUser(store, uid),
		uid:   uid,
		hooks: hooks,
	}
}

func (s *HabitStore) collection() string {
	return repo.HabitsCollection(s.uid)
}

func (s *HabitStore) Open(ctx context.Context) error {
	sub, err := s.store.Subscribe(ctx, repo.Query{Collection: s.collection()})
	if err != nil {
		err = repo.AppError(err, "habits", "")
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.evaluated = false
	s.mu.Unlock()

	go follow(sub, "habits", func(habits []habit.Habit, _ repo.Snapshot) {
		s.apply(ctx, habits)
	}, s.fail)
	return nil
}

func (s *HabitStore) apply(ctx context.Context, habits []habit.Habit) {
	s.mu.Lock()
	s.habits = habits
	s.ready = true
	s.err = nil
	seed := !s.evaluated && len(habits) == 0 && s.pending.Load() == 0
	s.evaluated = true
	if seed {
		s.seeding.Add(1)
	}
	s.mu.Unlock()

	s.hooks.changed()

	if seed {
		go func() {
			defer s.seeding.Done()
			if err := s.seedDefaults(ctx); err != nil {
				s.hooks.failed(err)
			}
		}()
	}
}

func (s *HabitStore) seedDefaults(ctx context.Context) error {
	for _, d := range habit.Defaults {
		if err := s.store.Set(ctx, repo.Join(s.collection(), d.ID), habit.NewFields(d.Name), false); err != nil {
			logger.Error("Service: error seeding default habit", err, zap.String("habit_id", d.ID))
			return apperr.Wrap(apperr.CodeRemoteUnavailable, "Could not create default habits.", err)
		}
	}
	logger.Info("Service: default habits seeded", zap.String("uid", s.uid))
	return nil
}

func (s *HabitStore) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.hooks.changed()
}

func (s *HabitStore) List() ([]habit.Habit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.habits), s.ready
}

func (s *HabitStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *HabitStore) Create(ctx context.Context, name string) (string, error) {
	if err := habit.ValidateName(name); err != nil {
		return "", err
	}
	s.pending.Add(1)
	defer s.pending.Add(-1)

	id := s.store.NewID()
	if err := s.store.Set(ctx, repo.Join(s.collection(), id), habit.NewFields(name), false); err != nil {
		logger.Error("Service: error creating habit", err, zap.String("uid", s.uid))
		return "", repo.AppError(err, "habit", id)
	}
	return id, nil
}

// SetDay writes the full seven-day array of habitID with only day changed.
// Unknown habits are ignored.
func (s *HabitStore) SetDay(ctx context.Context, habitID string, day int, value bool) error {
	if err := habit.ValidateDay(day); err != nil {
		return err
	}

	s.mu.RLock()
	idx := slices.IndexFunc(s.habits, func(h habit.Habit) bool { return h.ID == habitID })
	var days habit.Days
	if idx >= 0 {
		days = s.habits[idx].CompletedDays
	}
	s.mu.RUnlock()
	if idx < 0 {
		return nil
	}

	s.pending.Add(1)
	defer s.pending.Add(-1)

	if err := s.store.Update(ctx, repo.Join(s.collection(), habitID), habit.DaysFields(days.WithDay(day, value))); err != nil {
		logger.Error("Service: error updating habit", err, zap.String("habit_id", habitID))
		return repo.AppError(err, "habit", habitID)
	}
	return nil
}

func (s *HabitStore) Close() {
	s.mu.RLock()
	sub := s.sub
	s.mu.RUnlock()
	if sub != nil {
		sub.Close()
	}
	s.seeding.Wait()
}

package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"achieveit/internal/apperr"
	"achieveit/internal/models/goal"
	"achieveit/internal/models/habit"
	"achieveit/internal/models/user"
	repo "achieveit/internal/repository"
	"achieveit/internal/repository/inmemory"
	"achieveit/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a testify mock of the document store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, path string) (repo.Document, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(repo.Document), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	return m.Called(ctx, path, data, merge).Error(0)
}

func (m *MockStore) Update(ctx context.Context, path string, fields map[string]any) error {
	return m.Called(ctx, path, fields).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *MockStore) List(ctx context.Context, q repo.Query) ([]repo.Document, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repo.Document), args.Error(1)
}

func (m *MockStore) Subscribe(ctx context.Context, q repo.Query) (*repo.Subscription, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repo.Subscription), args.Error(1)
}

func (m *MockStore) NewID() string {
	return m.Called().String(0)
}

func (m *MockStore) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) Close() {}

var _ repo.Store = (*MockStore)(nil)

// counter counts Changed hook calls.
type counter struct{ n atomic.Int32 }

func (c *counter) hooks() service.Hooks {
	return service.Hooks{Changed: func() { c.n.Add(1) }}
}

func waitGoals(t *testing.T, s *service.GoalStore, want int) []goal.Goal {
	t.Helper()
	var goals []goal.Goal
	require.Eventually(t, func() bool {
		var ready bool
		goals, ready = s.List()
		return ready && len(goals) == want
	}, 2*time.Second, 5*time.Millisecond)
	return goals
}

func waitHabits(t *testing.T, s *service.HabitStore, cond func([]habit.Habit) bool) []habit.Habit {
	t.Helper()
	var habits []habit.Habit
	require.Eventually(t, func() bool {
		var ready bool
		habits, ready = s.List()
		return ready && cond(habits)
	}, 2*time.Second, 5*time.Millisecond)
	return habits
}

func TestGoalStore_SaveCreatesAndUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &counter{}
	store := service.NewGoalStore(inmemory.NewStorage(), "u1", c.hooks())
	require.NoError(t, store.Open(ctx))
	defer store.Close()

	waitGoals(t, store, 0)

	id, err := store.Save(ctx, goal.Draft{
		Title:    "Run a marathon",
		Category: goal.CategoryHealth,
		Priority: goal.PriorityHigh,
	})
	require.NoError(t, err)

	goals := waitGoals(t, store, 1)
	assert.Equal(t, id, goals[0].ID)
	assert.Equal(t, 0, goals[0].Progress, "new goals start at zero progress")
	assert.False(t, goals[0].IsCompleted)
	assert.False(t, goals[0].CreatedAt.IsZero())

	_, err = store.Save(ctx, goal.Draft{
		ID:       id,
		Title:    "Run a half marathon",
		Category: goal.CategoryHealth,
		Priority: goal.PriorityMedium,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		g, ok := store.Get(id)
		return ok && g.Title == "Run a half marathon" && g.Priority == goal.PriorityMedium
	}, 2*time.Second, 5*time.Millisecond)
	assert.Positive(t, c.n.Load())
}

func TestGoalStore_EditKeepsCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := service.NewGoalStore(inmemory.NewStorage(), "u1", service.Hooks{})
	require.NoError(t, store.Open(ctx))
	defer store.Close()

	waitGoals(t, store, 0)

	id, err := store.Save(ctx, goal.Draft{
		Title:    "Run 5k",
		Category: goal.CategoryHealth,
		Priority: goal.PriorityLow,
	})
	require.NoError(t, err)
	g := waitGoals(t, store, 1)[0]

	done, err := store.ToggleComplete(ctx, g)
	require.NoError(t, err)
	require.True(t, done)
	require.Eventually(t, func() bool {
		g, ok := store.Get(id)
		return ok && g.IsCompleted && g.Progress == 100
	}, 2*time.Second, 5*time.Millisecond)

	_, err = store.Save(ctx, goal.Draft{
		ID:          id,
		Title:       "Run 10k",
		Description: "before summer",
		Category:    goal.CategoryHealth,
		Priority:    goal.PriorityHigh,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		g, ok := store.Get(id)
		return ok && g.Title == "Run 10k"
	}, 2*time.Second, 5*time.Millisecond)
	g, _ = store.Get(id)
	assert.True(t, g.IsCompleted)
	assert.Equal(t, 100, g.Progress)
	assert.Equal(t, "before summer", g.Description)
}

func TestGoalStore_NewestFirst(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, storage.Set(ctx, "users/u1/goals/a", map[string]any{
		"title": "Old", "category": "Work", "priority": "Low", "createdAt": older,
	}, false))
	// Legacy documents may hold wrapped timestamps.
	require.NoError(t, storage.Set(ctx, "users/u1/goals/b", map[string]any{
		"title": "New", "category": "Work", "priority": "Low",
		"createdAt": map[string]any{"seconds": older.Add(time.Hour).Unix(), "nanos": 0},
	}, false))

	store := service.NewGoalStore(storage, "u1", service.Hooks{})
	require.NoError(t, store.Open(ctx))
	defer store.Close()

	goals := waitGoals(t, store, 2)
	assert.Equal(t, "b", goals[0].ID)
	assert.Equal(t, "a", goals[1].ID)
	assert.Equal(t, older.Add(time.Hour), goals[0].CreatedAt.UTC())
}

func TestGoalStore_ValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name  string
		draft goal.Draft
	}{
		{name: "short title", draft: goal.Draft{Title: "ab", Category: goal.CategoryWork, Priority: goal.PriorityLow}},
		{name: "unknown category", draft: goal.Draft{Title: "Valid", Category: "Fun", Priority: goal.PriorityLow}},
		{name: "unknown priority", draft: goal.Draft{Title: "Valid", Category: goal.CategoryWork, Priority: "Urgent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockStore)
			store := service.NewGoalStore(m, "u1", service.Hooks{})

			_, err := store.Save(context.Background(), tt.draft)
			assert.True(t, apperr.Is(err, apperr.CodeValidation))
			m.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			m.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGoalStore_StoreFailures(t *testing.T) {
	draft := goal.Draft{Title: "Valid", Category: goal.CategoryWork, Priority: goal.PriorityLow}

	tests := []struct {
		name      string
		setupMock func(*MockStore)
		run       func(*service.GoalStore) error
		wantCode  string
	}{
		{
			name: "create unavailable",
			setupMock: func(m *MockStore) {
				m.On("NewID").Return("g1")
				m.On("Set", mock.Anything, "users/u1/goals/g1", mock.Anything, false).Return(repo.ErrRemoteUnavailable)
			},
			run: func(s *service.GoalStore) error {
				_, err := s.Save(context.Background(), draft)
				return err
			},
			wantCode: apperr.CodeRemoteUnavailable,
		},
		{
			name: "delete permission denied",
			setupMock: func(m *MockStore) {
				m.On("Delete", mock.Anything, "users/u1/goals/g1").Return(repo.ErrPermissionDenied)
			},
			run: func(s *service.GoalStore) error {
				return s.Remove(context.Background(), "g1")
			},
			wantCode: apperr.CodePermissionDenied,
		},
		{
			name: "toggle missing goal",
			setupMock: func(m *MockStore) {
				m.On("Update", mock.Anything, "users/u1/goals/g1", mock.Anything).Return(repo.ErrNotFound)
			},
			run: func(s *service.GoalStore) error {
				_, err := s.ToggleComplete(context.Background(), goal.Goal{ID: "g1"})
				return err
			},
			wantCode: apperr.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockStore)
			tt.setupMock(m)
			store := service.NewGoalStore(m, "u1", service.Hooks{})

			err := tt.run(store)
			assert.True(t, apperr.Is(err, tt.wantCode), "got %v", err)
			m.AssertExpectations(t)
		})
	}
}

func TestGoalStore_ToggleComplete(t *testing.T) {
	tests := []struct {
		name         string
		goal         goal.Goal
		wantComplete bool
		wantProgress int
	}{
		{name: "complete", goal: goal.Goal{ID: "g1", Progress: 30}, wantComplete: true, wantProgress: 100},
		{name: "reopen at 100", goal: goal.Goal{ID: "g1", Progress: 100, IsCompleted: true}, wantProgress: 90},
		{name: "reopen below 100", goal: goal.Goal{ID: "g1", Progress: 70, IsCompleted: true}, wantProgress: 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockStore)
			m.On("Update", mock.Anything, "users/u1/goals/g1", map[string]any{
				"isCompleted": tt.wantComplete,
				"progress":    tt.wantProgress,
			}).Return(nil)

			done, err := service.NewGoalStore(m, "u1", service.Hooks{}).ToggleComplete(context.Background(), tt.goal)
			require.NoError(t, err)
			assert.Equal(t, tt.wantComplete, done)
			m.AssertExpectations(t)
		})
	}
}

func TestGoalStore_SubscriptionFailure(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	c := &counter{}
	store := service.NewGoalStore(storage, "u1", c.hooks())
	require.NoError(t, store.Open(ctx))
	waitGoals(t, store, 0)

	storage.SetOffline(true)
	require.Eventually(t, func() bool {
		return apperr.Is(store.Err(), apperr.CodeRemoteUnavailable)
	}, 2*time.Second, 5*time.Millisecond)

	_, ready := store.List()
	assert.True(t, ready, "prior data stays usable")
}

func TestHabitStore_SeedsDefaultsOnce(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	store := service.NewHabitStore(storage, "u1", service.Hooks{})
	require.NoError(t, store.Open(ctx))

	habits := waitHabits(t, store, func(h []habit.Habit) bool { return len(h) == 2 })
	names := []string{habits[0].Name, habits[1].Name}
	assert.ElementsMatch(t, []string{"Drink 8 glasses of water", "Read for 15 minutes"}, names)
	for _, h := range habits {
		assert.Equal(t, habit.Days{}, h.CompletedDays)
	}
	store.Close()

	// A second activation on the same data does not seed again, and two
	// concurrent activations on empty data converge on the same two habits.
	other := service.NewHabitStore(storage, "u1", service.Hooks{})
	require.NoError(t, other.Open(ctx))
	waitHabits(t, other, func(h []habit.Habit) bool { return len(h) == 2 })
	other.Close()

	fresh := inmemory.NewStorage()
	a := service.NewHabitStore(fresh, "u2", service.Hooks{})
	b := service.NewHabitStore(fresh, "u2", service.Hooks{})
	require.NoError(t, a.Open(ctx))
	require.NoError(t, b.Open(ctx))
	defer a.Close()
	defer b.Close()
	waitHabits(t, a, func(h []habit.Habit) bool { return len(h) == 2 })

	docs, err := fresh.List(ctx, repo.Query{Collection: "users/u2/habits"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestHabitStore_NoSeedWhenNotEmpty(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	require.NoError(t, storage.Set(ctx, "users/u1/habits/h1", habit.NewFields("Stretch"), false))

	store := service.NewHabitStore(storage, "u1", service.Hooks{})
	require.NoError(t, store.Open(ctx))
	defer store.Close()

	habits := waitHabits(t, store, func(h []habit.Habit) bool { return len(h) == 1 })
	assert.Equal(t, "Stretch", habits[0].Name)

	// Emptying the collection later does not trigger seeding.
	require.NoError(t, storage.Delete(ctx, "users/u1/habits/h1"))
	waitHabits(t, store, func(h []habit.Habit) bool { return len(h) == 0 })
	time.Sleep(20 * time.Millisecond)
	habits, _ = store.List()
	assert.Empty(t, habits)
}

func TestHabitStore_SetDay(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	require.NoError(t, storage.Set(ctx, "users/u1/habits/h1", map[string]any{
		"name":          "Walk",
		"completedDays": []bool{true, false, false, false, false, false, true},
	}, false))

	store := service.NewHabitStore(storage, "u1", service.Hooks{})
	require.NoError(t, store.Open(ctx))
	defer store.Close()
	waitHabits(t, store, func(h []habit.Habit) bool { return len(h) == 1 })

	require.NoError(t, store.SetDay(ctx, "h1", 3, true))

	habits := waitHabits(t, store, func(h []habit.Habit) bool { return len(h) == 1 && h[0].CompletedDays[3] })
	assert.Equal(t, habit.Days{true, false, false, true, false, false, true}, habits[0].CompletedDays)

	assert.True(t, apperr.Is(store.SetDay(ctx, "h1", 7, true), apperr.CodeValidation))
	assert.NoError(t, store.SetDay(ctx, "missing", 1, true))
}

func TestHabitStore_Create(t *testing.T) {
	ctx := context.Background()
	store := service.NewHabitStore(inmemory.NewStorage(), "u1", service.Hooks{})
	require.NoError(t, store.Open(ctx))
	defer store.Close()
	waitHabits(t, store, func(h []habit.Habit) bool { return len(h) == 2 })

	_, err := store.Create(ctx, "  ")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	id, err := store.Create(ctx, "Meditate")
	require.NoError(t, err)
	habits := waitHabits(t, store, func(h []habit.Habit) bool { return len(h) == 3 })

	var found bool
	for _, h := range habits {
		if h.ID == id {
			found = true
			assert.Equal(t, habit.Days{}, h.CompletedDays)
		}
	}
	assert.True(t, found)
}

func TestHabitStore_SeedFailureReported(t *testing.T) {
	m := new(MockStore)
	sub := repo.NewSubscription(nil)
	m.On("Subscribe", mock.Anything, repo.Query{Collection: "users/u1/habits"}).Return(sub, nil)
	m.On("Set", mock.Anything, mock.Anything, mock.Anything, false).Return(repo.ErrRemoteUnavailable)

	failed := make(chan error, 1)
	store := service.NewHabitStore(m, "u1", service.Hooks{Failed: func(err error) { failed <- err }})
	require.NoError(t, store.Open(context.Background()))

	sub.Publish(repo.Snapshot{})
	select {
	case err := <-failed:
		assert.True(t, apperr.Is(err, apperr.CodeRemoteUnavailable))
	case <-time.After(2 * time.Second):
		t.Fatal("seed failure not reported")
	}
	store.Close()
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	profiles := service.NewProfiles(storage)
	u := user.User{UID: "u1", Email: "ann@example.com", DisplayName: "Ann"}

	require.NoError(t, profiles.Provision(ctx, u))
	p, err := profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, user.DefaultStepGoal, p.StepGoal)
	assert.Equal(t, "Ann", p.DisplayName)

	require.NoError(t, profiles.SetStepGoal(ctx, "u1", 12000))
	// Provisioning an existing profile keeps it untouched.
	require.NoError(t, profiles.Provision(ctx, user.User{UID: "u1", DisplayName: "Changed"}))

	p, err = profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 12000, p.StepGoal)
	assert.Equal(t, "Ann", p.DisplayName)

	assert.True(t, apperr.Is(profiles.SetStepGoal(ctx, "u1", 0), apperr.CodeValidation))

	_, err = profiles.Get(ctx, "nobody")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestProfiles_ProvisionFailure(t *testing.T) {
	m := new(MockStore)
	m.On("Get", mock.Anything, "users/u1").Return(repo.Document{}, errors.New("boom"))

	err := service.NewProfiles(m).Provision(context.Background(), user.User{UID: "u1"})
	assert.True(t, apperr.Is(err, apperr.CodeRemoteUnavailable))
	m.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

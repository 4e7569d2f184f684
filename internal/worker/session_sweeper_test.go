package worker_test

import (
	"context"
	"testing"
	"time"

	"achieveit/internal/auth"
	"achieveit/internal/identity/local"
	"achieveit/internal/repository/inmemory"
	"achieveit/internal/service"
	"achieveit/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSweeper struct {
	mock.Mock
}

var _ worker.Sweeper = (*MockSweeper)(nil)

func (m *MockSweeper) Sweep(ctx context.Context) int {
	args := m.Called(ctx)
	return args.Int(0)
}

func (m *MockSweeper) ActiveSessions() int {
	args := m.Called()
	return args.Int(0)
}

func TestSessionSweeper_Check(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(*MockSweeper)
		expected  int
	}{
		{
			name: "nothing expired",
			setupMock: func(m *MockSweeper) {
				m.On("Sweep", mock.Anything).Return(0)
			},
			expected: 0,
		},
		{
			name: "some expired",
			setupMock: func(m *MockSweeper) {
				m.On("Sweep", mock.Anything).Return(3)
				m.On("ActiveSessions").Return(5)
			},
			expected: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockSweeper)
			tt.setupMock(m)

			w := worker.NewSessionSweeper(m, nil)
			assert.Equal(t, tt.expected, w.Check(context.Background()))
			m.AssertExpectations(t)
		})
	}
}

func TestSessionSweeper_EndsIdleSessions(t *testing.T) {
	store := inmemory.NewStorage()
	m := auth.NewManager(local.New(store), service.NewProfiles(store), nil, nil, auth.Options{
		TTL:         time.Hour,
		IdleTimeout: 20 * time.Millisecond,
	})
	defer m.Close()

	idle := m.StartSession()
	closed := make(chan struct{})
	idle.OnClose(func() { close(closed) })

	interval := 10 * time.Millisecond
	w := worker.NewSessionSweeper(m, &interval)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		w.Start(ctx)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("idle session was not swept")
	}
	assert.Zero(t, m.ActiveSessions())

	cancel()
	<-stopped
}

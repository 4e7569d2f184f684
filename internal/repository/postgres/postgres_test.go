package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	repo "achieveit/internal/repository"
	"achieveit/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresTestSuite runs the document store against a real PostgreSQL.
type PostgresTestSuite struct {
	suite.Suite
	container  testcontainers.Container
	storage    *postgres.Storage
	connString string
	ctx        context.Context
}

func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	require.NoError(s.T(), postgres.Migrate(s.connString))
	require.NoError(s.T(), postgres.Migrate(s.connString), "migrations are idempotent")

	s.storage, err = postgres.New(s.ctx, s.connString, postgres.Options{MaxConns: 5})
	require.NoError(s.T(), err)
}

func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresTestSuite) SetupTest() {
	conn, err := pgx.Connect(s.ctx, s.connString)
	require.NoError(s.T(), err)
	defer conn.Close(s.ctx)

	_, err = conn.Exec(s.ctx, "DELETE FROM documents")
	require.NoError(s.T(), err)
}

func (s *PostgresTestSuite) nextSnapshot(sub *repo.Subscription) repo.Snapshot {
	select {
	case snap, ok := <-sub.Snapshots():
		s.Require().True(ok, "subscription closed: %v", sub.Err())
		return snap
	case <-time.After(5 * time.Second):
		s.FailNow("no snapshot delivered")
		return repo.Snapshot{}
	}
}

func (s *PostgresTestSuite) TestHealthCheck() {
	assert.NoError(s.T(), s.storage.HealthCheck(s.ctx))
}

func (s *PostgresTestSuite) TestSetGetUpdateDelete() {
	path := "users/u1/goals/g1"
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	err := s.storage.Set(s.ctx, path, map[string]any{
		"title":     "Run a marathon",
		"progress":  10,
		"createdAt": created,
	}, false)
	require.NoError(s.T(), err)

	doc, err := s.storage.Get(s.ctx, path)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "g1", doc.ID)
	assert.Equal(s.T(), "Run a marathon", doc.Data["title"])
	assert.Equal(s.T(), float64(10), doc.Data["progress"])
	got, ok := repo.ToTime(doc.Data["createdAt"])
	require.True(s.T(), ok)
	assert.True(s.T(), created.Equal(got))

	require.NoError(s.T(), s.storage.Update(s.ctx, path, map[string]any{"progress": 60}))
	require.NoError(s.T(), s.storage.Set(s.ctx, path, map[string]any{"isCompleted": true}, true))

	doc, err = s.storage.Get(s.ctx, path)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), float64(60), doc.Data["progress"])
	assert.Equal(s.T(), true, doc.Data["isCompleted"])
	assert.Equal(s.T(), "Run a marathon", doc.Data["title"])

	require.NoError(s.T(), s.storage.Delete(s.ctx, path))
	_, err = s.storage.Get(s.ctx, path)
	assert.ErrorIs(s.T(), err, repo.ErrNotFound)

	err = s.storage.Update(s.ctx, path, map[string]any{"progress": 1})
	assert.ErrorIs(s.T(), err, repo.ErrNotFound)
}

func (s *PostgresTestSuite) TestListOrdered() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(s.T(), s.storage.Set(s.ctx, "users/u1/goals/"+id, map[string]any{
			"createdAt": base.Add(time.Duration(i) * time.Minute),
		}, false))
	}
	require.NoError(s.T(), s.storage.Set(s.ctx, "users/u2/goals/x", map[string]any{}, false))

	docs, err := s.storage.List(s.ctx, repo.Query{Collection: "users/u1/goals", OrderBy: "createdAt", Descending: true})
	require.NoError(s.T(), err)
	require.Len(s.T(), docs, 3)
	assert.Equal(s.T(), "c", docs[0].ID)
	assert.Equal(s.T(), "a", docs[2].ID)
}

func (s *PostgresTestSuite) TestSubscribe() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	sub, err := s.storage.Subscribe(ctx, repo.Query{Collection: "users/u1/habits"})
	require.NoError(s.T(), err)
	defer sub.Close()

	assert.Empty(s.T(), s.nextSnapshot(sub).Docs)

	require.NoError(s.T(), s.storage.Set(s.ctx, "users/u1/habits/h1", map[string]any{"name": "Read"}, false))
	snap := s.nextSnapshot(sub)
	require.Len(s.T(), snap.Docs, 1)
	assert.Equal(s.T(), "Read", snap.Docs[0].Data["name"])

	require.NoError(s.T(), s.storage.Delete(s.ctx, "users/u1/habits/h1"))
	assert.Empty(s.T(), s.nextSnapshot(sub).Docs)

	cancel()
	assert.Eventually(s.T(), sub.Closed, 5*time.Second, 20*time.Millisecond)
	assert.NoError(s.T(), sub.Err())
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(PostgresTestSuite))
}

package inmemory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	repo "achieveit/internal/repository"
	"achieveit/internal/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goals = "users/u1/goals"

func nextSnapshot(t *testing.T, sub *repo.Subscription) repo.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return repo.Snapshot{}
	}
}

func TestStorage_HealthCheck(t *testing.T) {
	storage := inmemory.NewStorage()
	assert.NoError(t, storage.HealthCheck(context.Background()))

	storage.SetOffline(true)
	assert.ErrorIs(t, storage.HealthCheck(context.Background()), repo.ErrRemoteUnavailable)
}

func TestStorage_SetGetMerge(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, storage.Set(ctx, goals+"/g1", map[string]any{
		"title":     "Run",
		"progress":  10,
		"createdAt": created,
	}, false))

	doc, err := storage.Get(ctx, goals+"/g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", doc.ID)
	assert.Equal(t, "users/u1/goals/g1", doc.Path)
	assert.Equal(t, float64(10), doc.Data["progress"])
	assert.Equal(t, "2026-03-01T10:00:00Z", doc.Data["createdAt"])

	require.NoError(t, storage.Set(ctx, goals+"/g1", map[string]any{"progress": 20}, true))
	doc, err = storage.Get(ctx, goals+"/g1")
	require.NoError(t, err)
	assert.Equal(t, "Run", doc.Data["title"], "merge keeps untouched fields")

	require.NoError(t, storage.Set(ctx, goals+"/g1", map[string]any{"progress": 30}, false))
	doc, err = storage.Get(ctx, goals+"/g1")
	require.NoError(t, err)
	assert.NotContains(t, doc.Data, "title", "overwrite drops old fields")
}

func TestStorage_ReturnedDataIsACopy(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	require.NoError(t, storage.Set(ctx, goals+"/g1", map[string]any{"title": "Run"}, false))

	doc, err := storage.Get(ctx, goals+"/g1")
	require.NoError(t, err)
	doc.Data["title"] = "mutated"

	doc, err = storage.Get(ctx, goals+"/g1")
	require.NoError(t, err)
	assert.Equal(t, "Run", doc.Data["title"])
}

func TestStorage_Update(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	err := storage.Update(ctx, goals+"/missing", map[string]any{"progress": 1})
	assert.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, storage.Set(ctx, goals+"/g1", map[string]any{"title": "Run", "progress": 0}, false))
	require.NoError(t, storage.Update(ctx, goals+"/g1", map[string]any{"progress": 50}))

	doc, err := storage.Get(ctx, goals+"/g1")
	require.NoError(t, err)
	assert.Equal(t, "Run", doc.Data["title"])
	assert.Equal(t, float64(50), doc.Data["progress"])
	assert.False(t, doc.UpdateTime.Before(doc.CreateTime))
}

func TestStorage_Delete(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	require.NoError(t, storage.Set(ctx, goals+"/g1", map[string]any{"title": "Run"}, false))

	require.NoError(t, storage.Delete(ctx, goals+"/g1"))
	_, err := storage.Get(ctx, goals+"/g1")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	assert.NoError(t, storage.Delete(ctx, goals+"/g1"), "deleting a missing document is not an error")
}

func TestStorage_InvalidPaths(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	tests := []struct {
		name string
		run  func() error
	}{
		{"get collection path", func() error { _, err := storage.Get(ctx, goals); return err }},
		{"set empty", func() error { return storage.Set(ctx, "", nil, false) }},
		{"list document path", func() error { _, err := storage.List(ctx, repo.Query{Collection: "users/u1"}); return err }},
		{"dot segment", func() error { return storage.Delete(ctx, "users/../goals/g1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), repo.ErrInvalidPath)
		})
	}
}

func TestStorage_ListOrdering(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, storage.Set(ctx, goals+"/"+id, map[string]any{
			"createdAt": base.Add(time.Duration(i) * time.Hour),
		}, false))
	}

	docs, err := storage.List(ctx, repo.Query{Collection: goals, OrderBy: "createdAt", Descending: true})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})

	other, err := storage.List(ctx, repo.Query{Collection: "users/u2/goals"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStorage_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	storage := inmemory.NewStorage()

	sub, err := storage.Subscribe(ctx, repo.Query{Collection: goals})
	require.NoError(t, err)

	first := nextSnapshot(t, sub)
	assert.Empty(t, first.Docs, "activation delivers the current (empty) set")

	require.NoError(t, storage.Set(ctx, goals+"/g1", map[string]any{"title": "Run"}, false))
	snap := nextSnapshot(t, sub)
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, "g1", snap.Docs[0].ID)

	// A write to another collection does not notify.
	require.NoError(t, storage.Set(ctx, "users/u1/habits/h1", map[string]any{"name": "Read"}, false))
	select {
	case <-sub.Snapshots():
		t.Fatal("unexpected snapshot for unrelated collection")
	case <-time.After(50 * time.Millisecond):
	}

	sub.Close()
	_, ok := <-sub.Snapshots()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
}

func TestStorage_SubscribeCoalesces(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	sub, err := storage.Subscribe(ctx, repo.Query{Collection: goals})
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, storage.Set(ctx, fmt.Sprintf("%s/g%d", goals, i), map[string]any{"n": i}, false))
	}

	snap := nextSnapshot(t, sub)
	assert.Len(t, snap.Docs, 5, "slow reader sees only the newest full snapshot")
}

func TestStorage_SubscribeEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	storage := inmemory.NewStorage()

	sub, err := storage.Subscribe(ctx, repo.Query{Collection: goals})
	require.NoError(t, err)
	nextSnapshot(t, sub)

	cancel()
	assert.Eventually(t, sub.Closed, time.Second, 10*time.Millisecond)
}

func TestStorage_OfflineFailsSubscription(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	sub, err := storage.Subscribe(ctx, repo.Query{Collection: goals})
	require.NoError(t, err)
	nextSnapshot(t, sub)

	storage.SetOffline(true)
	_, ok := <-sub.Snapshots()
	assert.False(t, ok)
	assert.ErrorIs(t, sub.Err(), repo.ErrRemoteUnavailable)

	assert.ErrorIs(t, storage.Set(ctx, goals+"/g1", nil, false), repo.ErrRemoteUnavailable)
}

func TestStorage_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = storage.Set(ctx, fmt.Sprintf("%s/g%d", goals, n), map[string]any{"n": n}, false)
		}(i)
	}
	wg.Wait()

	docs, err := storage.List(ctx, repo.Query{Collection: goals})
	require.NoError(t, err)
	assert.Len(t, docs, 50)
}

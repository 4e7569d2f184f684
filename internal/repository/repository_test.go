package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"achieveit/internal/apperr"
	repo "achieveit/internal/repository"
	"achieveit/internal/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDoc(t *testing.T) {
	tests := []struct {
		path       string
		collection string
		id         string
		wantErr    bool
	}{
		{path: "users/u1", collection: "users", id: "u1"},
		{path: "/users/u1/goals/g1/", collection: "users/u1/goals", id: "g1"},
		{path: "users", wantErr: true},
		{path: "users//goals/g1", wantErr: true},
		{path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			collection, id, err := repo.SplitDoc(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, repo.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.collection, collection)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestToTime(t *testing.T) {
	want := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

	tests := []struct {
		name  string
		input any
	}{
		{"time", want},
		{"rfc3339", "2026-05-04T03:02:01Z"},
		{"seconds object", map[string]any{"seconds": float64(want.Unix()), "nanos": float64(0)}},
		{"admin sdk object", map[string]any{"_seconds": float64(want.Unix()), "_nanoseconds": float64(0)}},
		{"unix millis", float64(want.UnixMilli())},
		{"json number", json.Number("1777863721000")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := repo.ToTime(tt.input)
			require.True(t, ok)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	_, ok := repo.ToTime("yesterday")
	assert.False(t, ok)
	_, ok = repo.ToTime(map[string]any{"nanos": float64(1)})
	assert.False(t, ok)
}

type sample struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Progress  int        `json:"progress"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	Days      [7]bool    `json:"days"`
}

func TestDecode(t *testing.T) {
	created := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	doc := repo.Document{
		ID:   "g1",
		Path: "users/u1/goals/g1",
		Data: map[string]any{
			"title":     "Run",
			"progress":  float64(40),
			"dueDate":   nil,
			"createdAt": map[string]any{"seconds": float64(created.Unix()), "nanos": float64(0)},
			"days":      []any{true, false, false, false, false, false, true},
		},
	}

	var s sample
	require.NoError(t, repo.Decode(doc, &s))

	assert.Equal(t, "g1", s.ID)
	assert.Equal(t, 40, s.Progress)
	assert.Nil(t, s.DueDate)
	assert.True(t, created.Equal(s.CreatedAt))
	assert.Equal(t, [7]bool{true, false, false, false, false, false, true}, s.Days)

	doc.Data["dueDate"] = "2026-02-01T00:00:00Z"
	require.NoError(t, repo.Decode(doc, &s))
	require.NotNil(t, s.DueDate)
	assert.Equal(t, 2026, s.DueDate.Year())
}

func TestSortDocs_MixedTimestampShapes(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []repo.Document{
		{ID: "a", Data: map[string]any{"createdAt": base.Format(time.RFC3339)}},
		{ID: "b", Data: map[string]any{"createdAt": map[string]any{"seconds": float64(base.Add(2 * time.Hour).Unix())}}},
		{ID: "c", Data: map[string]any{"createdAt": float64(base.Add(time.Hour).UnixMilli())}},
	}

	repo.SortDocs(docs, "createdAt", true)
	assert.Equal(t, []string{"b", "c", "a"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})

	repo.SortDocs(docs, "", false)
	assert.Equal(t, []string{"a", "b", "c"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
}

func TestForUser(t *testing.T) {
	ctx := context.Background()
	scoped := repo.ForUser(inmemory.NewStorage(), "u1")

	assert.NoError(t, scoped.Set(ctx, "users/u1", map[string]any{"stepGoal": 8000}, false))
	assert.NoError(t, scoped.Set(ctx, "users/u1/goals/g1", map[string]any{"title": "Run"}, false))

	denied := []func() error{
		func() error { return scoped.Set(ctx, "users/u2/goals/g1", nil, false) },
		func() error { _, err := scoped.Get(ctx, "users/u10"); return err },
		func() error { _, err := scoped.List(ctx, repo.Query{Collection: "accounts"}); return err },
		func() error { _, err := scoped.Subscribe(ctx, repo.Query{Collection: "users/u2/habits"}); return err },
		func() error { return scoped.Delete(ctx, "users/u2") },
	}
	for _, call := range denied {
		assert.ErrorIs(t, call(), repo.ErrPermissionDenied)
	}
}

func TestAppError(t *testing.T) {
	assert.Nil(t, repo.AppError(nil, "goal", "g1"))
	assert.True(t, apperr.Is(repo.AppError(repo.ErrNotFound, "goal", "g1"), apperr.CodeNotFound))
	assert.True(t, apperr.Is(repo.AppError(repo.ErrPermissionDenied, "goal", "g1"), apperr.CodePermissionDenied))
	assert.True(t, apperr.Is(repo.AppError(errors.New("dial tcp"), "goal", "g1"), apperr.CodeRemoteUnavailable))

	validation := apperr.NewValidation("title", "short")
	assert.Same(t, validation, repo.AppError(validation, "goal", "g1"))
}

func TestSubscription_LatestWins(t *testing.T) {
	stopped := 0
	sub := repo.NewSubscription(func() { stopped++ })

	sub.Publish(repo.Snapshot{Docs: []repo.Document{{ID: "1"}}})
	sub.Publish(repo.Snapshot{Docs: []repo.Document{{ID: "1"}, {ID: "2"}}})

	snap := <-sub.Snapshots()
	assert.Len(t, snap.Docs, 2)

	sub.Fail(errors.New("boom"))
	sub.Close()
	assert.Equal(t, 1, stopped)
	assert.EqualError(t, sub.Err(), "boom")

	assert.NotPanics(t, func() { sub.Publish(repo.Snapshot{}) })
}

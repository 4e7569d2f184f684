package service

import (
	"achieveit/internal/logger"
	repo "achieveit/internal/repository"

	"go.uber.org/zap"
)

// Hooks let the owner of a store react to it. Changed runs after every
// snapshot and after the subscription ends. Failed reports errors of
// background writes the store makes on its own.
type Hooks struct {
	Changed func()
	Failed  func(error)
}

func (h Hooks) changed() {
	if h.Changed != nil {
		h.Changed()
	}
}

func (h Hooks) failed(err error) {
	if h.Failed != nil {
		h.Failed(err)
	}
}

func decodeDoc[T any](doc repo.Document) (T, error) {
	var v T
	err := repo.Decode(doc, &v)
	return v, err
}

// follow consumes sub until it ends. Documents that cannot be decoded are
// skipped. The terminal error, if any, goes to fail.
func follow[T any](sub *repo.Subscription, resource string, apply func([]T, repo.Snapshot), fail func(error)) {
	for snap := range sub.Snapshots() {
		items := make([]T, 0, len(snap.Docs))
		for _, doc := range snap.Docs {
			item, err := decodeDoc[T](doc)
			if err != nil {
				logger.Warn("Service: skip undecodable document", zap.String("path", doc.Path), zap.Error(err))
				continue
			}
			items = append(items, item)
		}
		apply(items, snap)
	}

	if err := sub.Err(); err != nil {
		logger.Error("Service: subscription ended", err, zap.String("resource", resource))
		fail(repo.AppError(err, resource, ""))
	}
}

package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"achieveit/internal/logger"
	repo "achieveit/internal/repository"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Subscribe watches the collection directory and re-reads it after each
// burst of file changes.
func (s *Storage) Subscribe(ctx context.Context, q repo.Query) (*repo.Subscription, error) {
	collection, err := repo.CleanCollection(q.Collection)
	if err != nil {
		return nil, err
	}
	q.Collection = collection

	dir := s.collectionDir(collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: ensure %s: %v", repo.ErrRemoteUnavailable, dir, err)
	}
	// diskv prunes empty directories on erase, which would drop the watch.
	if err := touch(filepath.Join(dir, keepFile)); err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrRemoteUnavailable, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: create watcher: %v", repo.ErrRemoteUnavailable, err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("%w: watch %s: %v", repo.ErrRemoteUnavailable, dir, err)
	}

	docs, err := s.list(ctx, q)
	if err != nil {
		watcher.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := repo.NewSubscription(cancel)
	sub.Publish(repo.Snapshot{Docs: docs, At: time.Now().UTC()})

	refresh := func() {
		docs, err := s.list(subCtx, q)
		if err != nil {
			if subCtx.Err() == nil {
				sub.Fail(err)
			}
			return
		}
		sub.Publish(repo.Snapshot{Docs: docs, At: time.Now().UTC()})
	}

	go func() {
		defer watcher.Close()
		defer sub.Close()

		throttle := newThrottle(s.throttle, refresh)
		defer throttle.Stop()

		for {
			select {
			case <-subCtx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("Repository: watcher failed", err, zap.String("collection", collection))
				sub.Fail(fmt.Errorf("%w: %v", repo.ErrRemoteUnavailable, err))
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				throttle.Trigger()
			}
		}
	}()

	return sub, nil
}

const keepFile = ".keep"

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// throttle runs fn once per burst of triggers.
type throttle struct {
	mu      sync.Mutex
	timer   *time.Timer
	delay   time.Duration
	fn      func()
	stopped bool
}

func newThrottle(delay time.Duration, fn func()) *throttle {
	return &throttle{delay: delay, fn: fn}
}

func (t *throttle) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.timer != nil {
		return
	}
	t.timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		t.timer = nil
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			t.fn()
		}
	})
}

func (t *throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"achieveit/internal/logger"
	repo "achieveit/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type record struct {
	data       map[string]any
	createTime time.Time
	updateTime time.Time
}

type Storage struct {
	mtx         *sync.RWMutex
	collections map[string]map[string]*record
	subs        map[string]map[int]subscriber
	nextSub     int
	offline     bool
}

type subscriber struct {
	query repo.Query
	sub   *repo.Subscription
}

var _ repo.Store = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{
		mtx:         &sync.RWMutex{},
		collections: make(map[string]map[string]*record),
		subs:        make(map[string]map[int]subscriber),
	}
}

// SetOffline makes every call fail with ErrRemoteUnavailable, like a
// dropped connection. Live subscriptions are ended.
func (s *Storage) SetOffline(offline bool) {
	s.mtx.Lock()
	s.offline = offline
	var dropped []*repo.Subscription
	if offline {
		for _, subs := range s.subs {
			for _, sb := range subs {
				dropped = append(dropped, sb.sub)
			}
		}
	}
	s.mtx.Unlock()

	for _, sub := range dropped {
		sub.Fail(repo.ErrRemoteUnavailable)
	}
}

func (s *Storage) checkOnline() error {
	if s.offline {
		return repo.ErrRemoteUnavailable
	}
	return nil
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if err := s.checkOnline(); err != nil {
		return err
	}
	logger.Debug("Repository: in-memory store healthy")
	return nil
}

func (s *Storage) NewID() string {
	return uuid.NewString()
}

func (s *Storage) Close() {
	s.mtx.Lock()
	var all []*repo.Subscription
	for _, subs := range s.subs {
		for _, sb := range subs {
			all = append(all, sb.sub)
		}
	}
	s.mtx.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

func (s *Storage) Get(ctx context.Context, path string) (repo.Document, error) {
	collection, id, err := repo.SplitDoc(path)
	if err != nil {
		return repo.Document{}, err
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if err := s.checkOnline(); err != nil {
		return repo.Document{}, err
	}

	rec, ok := s.collections[collection][id]
	if !ok {
		return repo.Document{}, repo.ErrNotFound
	}
	return toDocument(collection, id, rec), nil
}

func (s *Storage) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	collection, id, err := repo.SplitDoc(path)
	if err != nil {
		return err
	}
	normalized, err := repo.Normalize(data)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.checkOnline(); err != nil {
		return err
	}

	now := time.Now().UTC()
	docs := s.collection(collection)
	if rec, ok := docs[id]; ok {
		if merge {
			rec.data = repo.Merge(rec.data, normalized)
		} else {
			rec.data = normalized
		}
		rec.updateTime = now
	} else {
		docs[id] = &record{data: normalized, createTime: now, updateTime: now}
	}

	s.notifyLocked(collection)
	return nil
}

func (s *Storage) Update(ctx context.Context, path string, fields map[string]any) error {
	collection, id, err := repo.SplitDoc(path)
	if err != nil {
		return err
	}
	normalized, err := repo.Normalize(fields)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.checkOnline(); err != nil {
		return err
	}

	rec, ok := s.collections[collection][id]
	if !ok {
		return repo.ErrNotFound
	}
	rec.data = repo.Merge(rec.data, normalized)
	rec.updateTime = time.Now().UTC()

	s.notifyLocked(collection)
	return nil
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	collection, id, err := repo.SplitDoc(path)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.checkOnline(); err != nil {
		return err
	}

	if _, ok := s.collections[collection][id]; !ok {
		return nil
	}
	delete(s.collections[collection], id)

	s.notifyLocked(collection)
	return nil
}

func (s *Storage) List(ctx context.Context, q repo.Query) ([]repo.Document, error) {
	collection, err := repo.CleanCollection(q.Collection)
	if err != nil {
		return nil, err
	}
	q.Collection = collection

	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if err := s.checkOnline(); err != nil {
		return nil, err
	}
	return s.queryLocked(q), nil
}

func (s *Storage) Subscribe(ctx context.Context, q repo.Query) (*repo.Subscription, error) {
	collection, err := repo.CleanCollection(q.Collection)
	if err != nil {
		return nil, err
	}
	q.Collection = collection

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.checkOnline(); err != nil {
		return nil, err
	}

	id := s.nextSub
	s.nextSub++

	subCtx, cancel := context.WithCancel(ctx)
	sub := repo.NewSubscription(func() {
		cancel()
		s.mtx.Lock()
		delete(s.subs[collection], id)
		s.mtx.Unlock()
	})

	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]subscriber)
	}
	s.subs[collection][id] = subscriber{query: q, sub: sub}
	sub.Publish(repo.Snapshot{Docs: s.queryLocked(q), At: time.Now().UTC()})

	go func() {
		<-subCtx.Done()
		sub.Close()
	}()

	logger.Debug("Repository: subscription opened",
		zap.String("collection", collection),
		zap.Int("subscription", id))
	return sub, nil
}

func (s *Storage) collection(name string) map[string]*record {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]*record)
		s.collections[name] = docs
	}
	return docs
}

func (s *Storage) queryLocked(q repo.Query) []repo.Document {
	docs := make([]repo.Document, 0, len(s.collections[q.Collection]))
	for id, rec := range s.collections[q.Collection] {
		docs = append(docs, toDocument(q.Collection, id, rec))
	}
	repo.SortDocs(docs, q.OrderBy, q.Descending)
	return docs
}

func (s *Storage) notifyLocked(collection string) {
	now := time.Now().UTC()
	for _, sb := range s.subs[collection] {
		sb.sub.Publish(repo.Snapshot{Docs: s.queryLocked(sb.query), At: now})
	}
}

func toDocument(collection, id string, rec *record) repo.Document {
	data, err := repo.Normalize(rec.data)
	if err != nil {
		// Stored data is already normalized JSON; re-encoding cannot fail.
		panic(fmt.Sprintf("inmemory: copy %s/%s: %v", collection, id, err))
	}
	return repo.Document{
		ID:         id,
		Path:       repo.Join(collection, id),
		Data:       data,
		CreateTime: rec.createTime,
		UpdateTime: rec.updateTime,
	}
}

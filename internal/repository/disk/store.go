package disk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"achieveit/internal/logger"
	repo "achieveit/internal/repository"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"
	"go.uber.org/zap"
)

const fileSuffix = ".json"

// Storage keeps one JSON file per document under BasePath. Every path
// segment is base64url encoded so arbitrary ids map to safe file names.
type Storage struct {
	d        *diskv.Diskv
	basePath string
	mtx      sync.Mutex
	throttle time.Duration
}

var _ repo.Store = (*Storage)(nil)

type record struct {
	Data       map[string]any `json:"data"`
	CreateTime time.Time      `json:"createTime"`
	UpdateTime time.Time      `json:"updateTime"`
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, errors.New("disk store: base path required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("disk store: ensure base path: %w", err)
	}
	logger.Info("Repository: disk store ready", zap.String("path", basePath))
	return &Storage{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			CacheSizeMax:      1024 * 1024,
		}),
		basePath: basePath,
		throttle: 50 * time.Millisecond,
	}, nil
}

func encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func decode(s string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func keyToPathTransform(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	dirs := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		dirs = append(dirs, encode(p))
	}
	return &diskv.PathKey{
		Path:     dirs,
		FileName: encode(parts[len(parts)-1]) + fileSuffix,
	}
}

func pathToKeyTransform(pk *diskv.PathKey) string {
	name, ok := strings.CutSuffix(pk.FileName, fileSuffix)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(pk.Path)+1)
	for _, p := range append(append([]string{}, pk.Path...), name) {
		if p == "" {
			continue
		}
		decoded, ok := decode(p)
		if !ok {
			return ""
		}
		parts = append(parts, decoded)
	}
	return strings.Join(parts, "/")
}

func (s *Storage) collectionDir(collection string) string {
	parts := strings.Split(collection, "/")
	enc := make([]string, len(parts))
	for i, p := range parts {
		enc[i] = encode(p)
	}
	return filepath.Join(append([]string{s.basePath}, enc...)...)
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("%w: %v", repo.ErrRemoteUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", repo.ErrRemoteUnavailable, s.basePath)
	}
	return nil
}

func (s *Storage) NewID() string {
	return uuid.NewString()
}

func (s *Storage) Close() {}

func (s *Storage) read(key string) (*record, error) {
	raw, err := s.d.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", repo.ErrRemoteUnavailable, err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("disk store: decode %s: %w", key, err)
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return &rec, nil
}

func (s *Storage) write(key string, rec *record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("disk store: encode %s: %w", key, err)
	}
	if err := s.d.Write(key, raw); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrRemoteUnavailable, err)
	}
	return nil
}

func docKey(path string) (key, collection, id string, err error) {
	collection, id, err = repo.SplitDoc(path)
	if err != nil {
		return "", "", "", err
	}
	return repo.Join(collection, id), collection, id, nil
}

func (s *Storage) Get(ctx context.Context, path string) (repo.Document, error) {
	key, collection, id, err := docKey(path)
	if err != nil {
		return repo.Document{}, err
	}
	rec, err := s.read(key)
	if err != nil {
		return repo.Document{}, err
	}
	return toDocument(collection, id, rec), nil
}

func (s *Storage) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	key, _, _, err := docKey(path)
	if err != nil {
		return err
	}
	normalized, err := repo.Normalize(data)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	now := time.Now().UTC()
	rec, err := s.read(key)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		rec = &record{Data: normalized, CreateTime: now}
	case err != nil:
		return err
	case merge:
		rec.Data = repo.Merge(rec.Data, normalized)
	default:
		rec.Data = normalized
	}
	rec.UpdateTime = now
	return s.write(key, rec)
}

func (s *Storage) Update(ctx context.Context, path string, fields map[string]any) error {
	key, _, _, err := docKey(path)
	if err != nil {
		return err
	}
	normalized, err := repo.Normalize(fields)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, err := s.read(key)
	if err != nil {
		return err
	}
	rec.Data = repo.Merge(rec.Data, normalized)
	rec.UpdateTime = time.Now().UTC()
	return s.write(key, rec)
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	key, _, _, err := docKey(path)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !s.d.Has(key) {
		return nil
	}
	if err := s.d.Erase(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", repo.ErrRemoteUnavailable, err)
	}
	return nil
}

func (s *Storage) List(ctx context.Context, q repo.Query) ([]repo.Document, error) {
	collection, err := repo.CleanCollection(q.Collection)
	if err != nil {
		return nil, err
	}
	q.Collection = collection
	return s.list(ctx, q)
}

func (s *Storage) list(ctx context.Context, q repo.Query) ([]repo.Document, error) {
	if _, err := os.Stat(s.collectionDir(q.Collection)); errors.Is(err, os.ErrNotExist) {
		return []repo.Document{}, nil
	}

	cancel := make(chan struct{})
	defer close(cancel)

	docs := []repo.Document{}
	for key := range s.d.KeysPrefix(q.Collection+"/", cancel) {
		collection, id, err := repo.SplitDoc(key)
		if err != nil || collection != q.Collection {
			continue
		}
		rec, err := s.read(key)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			logger.Warn("Repository: skip unreadable document", zap.String("key", key), zap.Error(err))
			continue
		}
		docs = append(docs, toDocument(collection, id, rec))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo.SortDocs(docs, q.OrderBy, q.Descending)
	return docs, nil
}

func toDocument(collection, id string, rec *record) repo.Document {
	return repo.Document{
		ID:         id,
		Path:       repo.Join(collection, id),
		Data:       rec.Data,
		CreateTime: rec.CreateTime,
		UpdateTime: rec.UpdateTime,
	}
}

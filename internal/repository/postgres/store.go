package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"achieveit/internal/logger"
	repo "achieveit/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	notifyChannel = "document_changes"
	slowQuery     = 100 * time.Millisecond
)

type Options struct {
	MaxConns    int32
	MinConns    int32
	IdleTimeout time.Duration
}

type Storage struct {
	pool *pgxpool.Pool
}

var _ repo.Store = (*Storage)(nil)

func New(ctx context.Context, connString string, opts Options) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: invalid connection string", err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = 5 * time.Minute
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.IdleTimeout > 0 {
		config.MaxConnIdleTime = opts.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: create pool failed", err)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: ping failed", err)
		return nil, fmt.Errorf("ping: %w", unavailable(err))
	}

	logger.Info("Repository: connected to PostgreSQL")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: PostgreSQL connections closed")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", unavailable(err))
	}
	return nil
}

func (s *Storage) NewID() string {
	return uuid.NewString()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", repo.ErrRemoteUnavailable, err)
}

func observe(op string, start time.Time, fields ...zap.Field) {
	if elapsed := time.Since(start); elapsed > slowQuery {
		logger.Warn("Repository: slow operation",
			append(fields, zap.String("op", op), zap.Duration("ms", elapsed))...)
	}
}

func (s *Storage) Get(ctx context.Context, path string) (repo.Document, error) {
	collection, id, err := repo.SplitDoc(path)
	if err != nil {
		return repo.Document{}, err
	}
	start := time.Now()
	defer observe("get", start, zap.String("path", path))

	query := `SELECT data, created_at, updated_at
				FROM documents
				WHERE collection = $1 AND id = $2`

	var raw []byte
	doc := repo.Document{ID: id, Path: repo.Join(collection, id)}
	err = s.pool.QueryRow(ctx, query, collection, id).Scan(&raw, &doc.CreateTime, &doc.UpdateTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.Document{}, repo.ErrNotFound
		}
		logger.Error("Repository: get document", err, zap.String("path", path))
		return repo.Document{}, unavailable(err)
	}

	if doc.Data, err = repo.Unmarshal(raw); err != nil {
		return repo.Document{}, err
	}
	return doc, nil
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
	start := time.Now()
	defer observe("set", start, zap.String("path", path))

	query := `INSERT INTO documents (collection, id, data)
				VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (collection, id) DO UPDATE
				SET data = EXCLUDED.data,
					updated_at = NOW()`
	if merge {
		query = `INSERT INTO documents (collection, id, data)
					VALUES ($1, $2, $3::jsonb)
				ON CONFLICT (collection, id) DO UPDATE
					SET data = documents.data || EXCLUDED.data,
						updated_at = NOW()`
	}

	if _, err := s.pool.Exec(ctx, query, collection, id, normalized); err != nil {
		logger.Error("Repository: set document", err, zap.String("path", path))
		return unavailable(err)
	}
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
	start := time.Now()
	defer observe("update", start, zap.String("path", path))

	query := `UPDATE documents
				SET data = data || $3::jsonb,
					updated_at = NOW()
			WHERE collection = $1 AND id = $2`

	tag, err := s.pool.Exec(ctx, query, collection, id, normalized)
	if err != nil {
		logger.Error("Repository: update document", err, zap.String("path", path))
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	collection, id, err := repo.SplitDoc(path)
	if err != nil {
		return err
	}
	start := time.Now()
	defer observe("delete", start, zap.String("path", path))

	query := `DELETE FROM documents
				WHERE collection = $1 AND id = $2`

	if _, err := s.pool.Exec(ctx, query, collection, id); err != nil {
		logger.Error("Repository: delete document", err, zap.String("path", path))
		return unavailable(err)
	}
	return nil
}

func (s *Storage) List(ctx context.Context, q repo.Query) ([]repo.Document, error) {
	collection, err := repo.CleanCollection(q.Collection)
	if err != nil {
		return nil, err
	}
	q.Collection = collection
	return list(ctx, s.pool, q)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func list(ctx context.Context, db querier, q repo.Query) ([]repo.Document, error) {
	start := time.Now()
	defer observe("list", start, zap.String("collection", q.Collection))

	query := `SELECT id, data, created_at, updated_at
				FROM documents
				WHERE collection = $1`

	rows, err := db.Query(ctx, query, q.Collection)
	if err != nil {
		logger.Error("Repository: list documents", err, zap.String("collection", q.Collection))
		return nil, unavailable(err)
	}
	defer rows.Close()

	docs := []repo.Document{}
	for rows.Next() {
		var raw []byte
		doc := repo.Document{}
		if err := rows.Scan(&doc.ID, &raw, &doc.CreateTime, &doc.UpdateTime); err != nil {
			return nil, unavailable(err)
		}
		if doc.Data, err = repo.Unmarshal(raw); err != nil {
			return nil, err
		}
		doc.Path = repo.Join(q.Collection, doc.ID)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}

	repo.SortDocs(docs, q.OrderBy, q.Descending)
	return docs, nil
}

// Subscribe holds one pooled connection in LISTEN mode for the lifetime of
// the subscription and re-reads the collection on every notification.
func (s *Storage) Subscribe(ctx context.Context, q repo.Query) (*repo.Subscription, error) {
	collection, err := repo.CleanCollection(q.Collection)
	if err != nil {
		return nil, err
	}
	q.Collection = collection

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		logger.Error("Repository: acquire listen connection", err)
		return nil, unavailable(err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		logger.Error("Repository: listen", err)
		return nil, unavailable(err)
	}

	docs, err := list(ctx, s.pool, q)
	if err != nil {
		s.releaseListener(conn)
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := repo.NewSubscription(cancel)
	sub.Publish(repo.Snapshot{Docs: docs, At: time.Now().UTC()})

	go func() {
		defer s.releaseListener(conn)
		defer sub.Close()

		for {
			n, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					logger.Error("Repository: subscription lost", err, zap.String("collection", collection))
					sub.Fail(unavailable(err))
				}
				return
			}
			if n.Payload != collection {
				continue
			}

			docs, err := list(subCtx, s.pool, q)
			if err != nil {
				if subCtx.Err() == nil {
					sub.Fail(err)
				}
				return
			}
			sub.Publish(repo.Snapshot{Docs: docs, At: time.Now().UTC()})
		}
	}()

	return sub, nil
}

func (s *Storage) releaseListener(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		// The connection may carry a stale LISTEN; drop it from the pool.
		_ = conn.Conn().Close(ctx)
	}
	conn.Release()
}

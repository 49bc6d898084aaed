package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/db"
)

// NotifyChannel is the Postgres channel used to broadcast collection changes.
const NotifyChannel = "docstore_changes"

const listenRetryDelay = time.Second

// PostgresOptions configures a PostgresStore.
type PostgresOptions struct {
	// Notify enables LISTEN/NOTIFY so subscriptions observe writes made by
	// other processes. CockroachDB does not implement pg_notify; leave it off there.
	Notify bool
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// PostgresStore keeps documents in a single JSONB table.
type PostgresStore struct {
	pool   db.Pool
	clock  clockwork.Clock
	logger *slog.Logger
	notify bool
	hub    *hub

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPostgresStore constructs a store over pool. When notifications are
// enabled a listener goroutine runs until Close.
func NewPostgresStore(pool db.Pool, opts PostgresOptions) *PostgresStore {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &PostgresStore{
		pool:   pool,
		clock:  opts.Clock,
		logger: opts.Logger,
		notify: opts.Notify,
		hub:    newHub(),
		cancel: cancel,
	}

	if s.notify {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.listen(ctx)
		}()
	}

	return s
}

func (s *PostgresStore) Get(ctx context.Context, path string) (Document, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return Document{}, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT data, create_time, update_time
        FROM documents
        WHERE collection = $1 AND id = $2
    `, collection, id)

	doc, err := scanDocument(row, collection, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("get %s: %w", path, ErrNotFound)
		}
		return Document{}, fmt.Errorf("select document %s: %w", path, err)
	}
	return doc, nil
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	sql := `SELECT id, data, create_time, update_time FROM documents WHERE collection = $1`
	args := []any{q.Collection}
	if len(filters) > 0 {
		containment, err := json.Marshal(containmentDocument(filters))
		if err != nil {
			return nil, fmt.Errorf("encode filters: %w", err)
		}
		sql += ` AND data @> $2::JSONB`
		args = append(args, string(containment))
	}

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id         string
			raw        []byte
			createTime time.Time
			updateTime time.Time
		)
		if err := rows.Scan(&id, &raw, &createTime, &updateTime); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, err
		}
		// Containment is looser than equality for nested values.
		if !matches(data, filters) {
			continue
		}
		docs = append(docs, Document{
			Path:       Path(q.Collection, id),
			ID:         id,
			Data:       data,
			CreateTime: createTime.UTC(),
			UpdateTime: updateTime.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Collection, err)
	}

	return finish(docs, q), nil
}

func (s *PostgresStore) Create(ctx context.Context, path string, data map[string]any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	prepared, err := prepare(data, now)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(prepared)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO documents (collection, id, data, create_time, update_time)
        VALUES ($1, $2, $3::JSONB, $4, $4)
    `, collection, id, string(raw), now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create %s: %w", path, ErrAlreadyExists)
		}
		return fmt.Errorf("insert document %s: %w", path, err)
	}

	s.changed(ctx, collection)
	return nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	return s.readModifyWrite(ctx, path, func(existing map[string]any, found bool) (map[string]any, error) {
		if merge && found {
			return mergeData(existing, data), nil
		}
		return data, nil
	})
}

func (s *PostgresStore) Update(ctx context.Context, path string, patch map[string]any) error {
	return s.readModifyWrite(ctx, path, func(existing map[string]any, found bool) (map[string]any, error) {
		if !found {
			return nil, fmt.Errorf("update %s: %w", path, ErrNotFound)
		}
		return applyPatch(existing, patch), nil
	})
}

func (s *PostgresStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.Create(ctx, Path(collection, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", path, err)
	}
	if tag.RowsAffected() > 0 {
		s.changed(ctx, collection)
	}
	return nil
}

func (s *PostgresStore) SubscribeDoc(ctx context.Context, path string) (*Subscription, error) {
	collection, _, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	return s.hub.watch(ctx, collection, func(ctx context.Context) (Snapshot, error) {
		return docSnapshot(ctx, s, path)
	})
}

func (s *PostgresStore) SubscribeQuery(ctx context.Context, q Query) (*Subscription, error) {
	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}
	return s.hub.watch(ctx, q.Collection, func(ctx context.Context) (Snapshot, error) {
		docs, err := s.Query(ctx, q)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Docs: docs}, nil
	})
}

// Close stops the listener and ends every subscription. The pool is owned by the caller.
func (s *PostgresStore) Close() error {
	s.cancel()
	s.wg.Wait()
	s.hub.close()
	return nil
}

func (s *PostgresStore) readModifyWrite(ctx context.Context, path string, next func(existing map[string]any, found bool) (map[string]any, error)) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	for attempt := 0; attempt < db.MaxRetries; attempt++ {
		if err := db.Backoff(ctx, attempt); err != nil {
			return err
		}

		err = s.writeTx(ctx, conn.Conn(), collection, id, next)
		if err == nil {
			s.changed(ctx, collection)
			return nil
		}
		if !db.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		s.logger.Warn("retrying document write", "path", path, "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("write %s: exceeded max retries (%d): %w", path, db.MaxRetries, err)
}

func (s *PostgresStore) writeTx(ctx context.Context, conn *pgx.Conn, collection, id string, next func(map[string]any, bool) (map[string]any, error)) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		raw   []byte
		found = true
	)
	err = tx.QueryRow(ctx, `
        SELECT data FROM documents
        WHERE collection = $1 AND id = $2
        FOR UPDATE
    `, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		found = false
	} else if err != nil {
		return fmt.Errorf("lock document: %w", err)
	}

	var existing map[string]any
	if found {
		if existing, err = decodeData(raw); err != nil {
			return err
		}
	}

	data, err := next(existing, found)
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	prepared, err := prepare(data, now)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(prepared)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO documents (collection, id, data, create_time, update_time)
        VALUES ($1, $2, $3::JSONB, $4, $4)
        ON CONFLICT (collection, id) DO UPDATE
        SET data = EXCLUDED.data, update_time = EXCLUDED.update_time
    `, collection, id, string(encoded), now); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	return tx.Commit(ctx)
}

// changed wakes local subscribers and, when enabled, other processes.
func (s *PostgresStore) changed(ctx context.Context, collection string) {
	s.hub.publish(collection)
	if !s.notify {
		return
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Error("notify collection change", "collection", collection, "error", err)
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, collection); err != nil {
		s.logger.Error("notify collection change", "collection", collection, "error", err)
	}
}

func (s *PostgresStore) listen(ctx context.Context) {
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("document change listener stopped, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(listenRetryDelay):
		}
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		// Our own writes were already published locally; a second wake-up is harmless.
		s.hub.publish(strings.TrimSpace(n.Payload))
	}
}

func scanDocument(row pgx.Row, collection, id string) (Document, error) {
	var (
		raw        []byte
		createTime time.Time
		updateTime time.Time
	)
	if err := row.Scan(&raw, &createTime, &updateTime); err != nil {
		return Document{}, err
	}
	data, err := decodeData(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Path:       Path(collection, id),
		ID:         id,
		Data:       data,
		CreateTime: createTime.UTC(),
		UpdateTime: updateTime.UTC(),
	}, nil
}

// containmentDocument turns filters into a JSONB value usable with @>.
func containmentDocument(filters []Filter) map[string]any {
	out := map[string]any{}
	for _, f := range filters {
		value := f.Value
		if f.Op == OpArrayContains {
			value = []any{f.Value}
		}
		segments := strings.Split(f.Field, ".")
		node := out
		for _, segment := range segments[:len(segments)-1] {
			next, ok := node[segment].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[segment] = next
			}
			node = next
		}
		last := segments[len(segments)-1]
		if existing, ok := node[last].([]any); ok && f.Op == OpArrayContains {
			node[last] = append(existing, f.Value)
			continue
		}
		node[last] = value
	}
	return out
}

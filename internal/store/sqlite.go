package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// SQLiteStore keeps documents as JSON text in a single table. Equality
// filters on top-level string fields are pushed into SQL via json_extract;
// everything else is evaluated in Go.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	// writeMu orders commits with feed delivery and subscription snapshots.
	writeMu sync.Mutex
	feed    *feed
	now     func() time.Time
}

func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("document store opened", zap.String("path", path))
	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
		feed:   newFeed(),
		now:    time.Now,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM documents WHERE collection = ? AND id = ?`, collection, id)
	doc, err := scanDocument(row, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, notFound(collection, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, collection, id string) (Document, error) {
	var data, updated string
	if err := row.Scan(&data, &updated); err != nil {
		return Document{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return Document{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return Document{Collection: collection, ID: id, Data: []byte(data), UpdatedAt: ts}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, collection, id string, v any) (Document, error) {
	data, err := encode(collection, id, v)
	if err != nil {
		return Document{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc := Document{Collection: collection, ID: id, Data: append([]byte(nil), data...), UpdatedAt: s.now().UTC()}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(doc.Data), doc.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Document{}, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	s.feed.publish(collection, id, &doc)
	return doc, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(collection, id)
	}
	s.feed.publish(collection, id, nil)
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Document, error) {
	cq, err := compile(q)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, cq)
}

func (s *SQLiteStore) query(ctx context.Context, cq *compiledQuery) ([]Document, error) {
	var where strings.Builder
	where.WriteString("collection = ?")
	args := []any{cq.Collection}
	for i, f := range cq.Filters {
		v, ok := cq.values[i].(string)
		if f.Op != OpEq || !ok || !pushable(f.Field) {
			continue
		}
		where.WriteString(" AND json_extract(data, ?) = ?")
		args = append(args, "$."+f.Field, v)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, updated_at FROM documents WHERE `+where.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", cq.Collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, data, updated string
		if err := rows.Scan(&id, &data, &updated); err != nil {
			return nil, fmt.Errorf("query %s: %w", cq.Collection, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, updated)
		if err != nil {
			return nil, fmt.Errorf("query %s: parse updated_at: %w", cq.Collection, err)
		}
		docs = append(docs, Document{Collection: cq.Collection, ID: id, Data: []byte(data), UpdatedAt: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", cq.Collection, err)
	}
	return cq.apply(docs), nil
}

// pushable reports whether field is a plain top-level key json_extract can
// address without crossing an array.
func pushable(field string) bool {
	if field == "" || strings.Contains(field, ".") {
		return false
	}
	for _, r := range field {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func (s *SQLiteStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	cq, err := compile(q)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	initial, err := s.query(ctx, cq)
	if err != nil {
		return nil, err
	}
	return s.feed.register(ctx, cq, initial), nil
}

func (s *SQLiteStore) Close() error {
	s.feed.closeAll()
	return s.db.Close()
}

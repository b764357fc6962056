// Package store is the document store the services are built on: JSON
// documents keyed by collection and id, filtered queries, point writes, and
// a push feed of changes per query.
//
// Two backends share the same query semantics. MemoryStore keeps everything
// in maps and is used by tests and throwaway runs; SQLiteStore persists to a
// single SQLite file. Filters that the backend cannot push down are
// evaluated in Go after loading the collection, which is fine at the
// thousands-of-rows scale this service targets.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

type Document struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

// DocumentStore is the contract every backend satisfies. Get returns an
// error wrapping model.ErrNotFound for missing documents. Writes are
// last-write-wins and are echoed to matching subscriptions, including the
// writer's own.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, v any) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Document, error)
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	Close() error
}

func notFound(collection, id string) error {
	return fmt.Errorf("%s %s: %w", collection, id, model.ErrNotFound)
}

func encode(collection, id string, v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return data, nil
}

package store

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
	feed *feed
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]Document),
		feed: newFeed(),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[collection][id]
	if !exists {
		return Document{}, notFound(collection, id)
	}
	return doc, nil
}

func (s *MemoryStore) Put(ctx context.Context, collection, id string, v any) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	data, err := encode(collection, id, v)
	if err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := Document{
		Collection: collection,
		ID:         id,
		Data:       append([]byte(nil), data...),
		UpdatedAt:  s.now().UTC(),
	}
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]Document)
	}
	s.docs[collection][id] = doc
	s.feed.publish(collection, id, &doc)
	return doc, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[collection][id]; !exists {
		return notFound(collection, id)
	}
	delete(s.docs[collection], id)
	s.feed.publish(collection, id, nil)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cq, err := compile(q)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return cq.apply(s.collection(q.Collection)), nil
}

func (s *MemoryStore) collection(name string) []Document {
	docs := make([]Document, 0, len(s.docs[name]))
	for _, d := range s.docs[name] {
		docs = append(docs, d)
	}
	return docs
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cq, err := compile(q)
	if err != nil {
		return nil, err
	}

	// Holding the read lock keeps writers out between snapshot and register.
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed.register(ctx, cq, cq.apply(s.collection(q.Collection))), nil
}

func (s *MemoryStore) Close() error {
	s.feed.closeAll()
	return nil
}

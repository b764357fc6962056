package store

import (
	"context"
	"sync"
)

type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

type Change struct {
	Kind     ChangeKind `json:"kind"`
	Document Document   `json:"document"`
}

// Subscription delivers the documents matching a query: Initial holds the
// snapshot taken at subscribe time, Changes streams what happens after.
// Queued changes are never dropped; a slow reader only grows the queue.
// The Changes channel is closed after Close or when the subscribe context
// ends.
type Subscription struct {
	Initial []Document

	query   *compiledQuery
	feed    *feed
	matched map[string]bool

	mu     sync.Mutex
	queue  []Change
	signal chan struct{}

	out       chan Change
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) Changes() <-chan Change {
	return s.out
}

// Close stops delivery and releases the subscription. Safe to call twice.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.feed.remove(s)
	})
}

// Done is closed once the subscription has been torn down.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) push(c Change) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}

// feed fans committed writes out to subscriptions. Backends call publish
// while still holding their write lock so the order of changes seen by a
// subscriber is the commit order.
type feed struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newFeed() *feed {
	return &feed{subs: make(map[*Subscription]struct{})}
}

func (f *feed) register(ctx context.Context, cq *compiledQuery, initial []Document) *Subscription {
	sub := &Subscription{
		Initial: initial,
		query:   cq,
		feed:    f,
		matched: make(map[string]bool, len(initial)),
		signal:  make(chan struct{}, 1),
		out:     make(chan Change),
		done:    make(chan struct{}),
	}
	for _, d := range initial {
		sub.matched[d.ID] = true
	}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	go sub.pump()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub
}

func (f *feed) remove(sub *Subscription) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
}

// publish reports a committed write. doc is nil for deletes.
func (f *feed) publish(collection, id string, doc *Document) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		if sub.query.Collection != collection {
			continue
		}
		was := sub.matched[id]
		now := doc != nil && sub.query.matches(*doc)

		switch {
		case !was && now:
			sub.matched[id] = true
			sub.push(Change{Kind: ChangeAdded, Document: *doc})
		case was && now:
			sub.push(Change{Kind: ChangeModified, Document: *doc})
		case was && !now:
			delete(sub.matched, id)
			removed := Document{Collection: collection, ID: id}
			if doc != nil {
				removed = *doc
			}
			sub.push(Change{Kind: ChangeRemoved, Document: removed})
		}
	}
}

func (f *feed) closeAll() {
	f.mu.Lock()
	subs := make([]*Subscription, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

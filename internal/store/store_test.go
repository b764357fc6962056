package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

type fixture struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	Total      string    `json:"total"`
	Count      int       `json:"count"`
	Items      []fixItem `json:"items"`
	CreatedAt  time.Time `json:"created_at"`
}

type fixItem struct {
	SupplierID string `json:"supplier_id"`
}

func backends(t *testing.T) map[string]func(t *testing.T) DocumentStore {
	return map[string]func(t *testing.T) DocumentStore{
		"memory": func(t *testing.T) DocumentStore {
			s := NewMemoryStore()
			t.Cleanup(func() { s.Close() })
			return s
		},
		"sqlite": func(t *testing.T) DocumentStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "docs.db"), nil)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func seed(t *testing.T, s DocumentStore) time.Time {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fixtures := []fixture{
		{ID: "a", CustomerID: "c1", Status: "pending", Total: "100", Count: 3, Items: []fixItem{{"s1"}, {"s2"}}, CreatedAt: base},
		{ID: "b", CustomerID: "c2", Status: "delivered", Total: "20.5", Count: 1, Items: []fixItem{{"s2"}}, CreatedAt: base.Add(time.Hour)},
		{ID: "c", CustomerID: "c1", Status: "cancelled", Total: "9", Count: 7, Items: []fixItem{{"s3"}}, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, f := range fixtures {
		_, err := s.Put(context.Background(), "orders", f.ID, f)
		require.NoError(t, err)
	}
	return base
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestDocumentStore_Query(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			base := seed(t, s)
			ctx := context.Background()

			tests := []struct {
				name string
				q    Query
				want []string
			}{
				{"all by id", Query{Collection: "orders"}, []string{"a", "b", "c"}},
				{"eq", Query{Collection: "orders", Filters: []Filter{Eq("customer_id", "c1")}}, []string{"a", "c"}},
				{"in", Query{Collection: "orders", Filters: []Filter{In("status", []string{"pending", "delivered"})}}, []string{"a", "b"}},
				{"array contains", Query{Collection: "orders", Filters: []Filter{Contains("items.supplier_id", "s2")}}, []string{"a", "b"}},
				{"time range", Query{Collection: "orders", Filters: []Filter{Gte("created_at", base.Add(time.Hour)), Lt("created_at", base.Add(2 * time.Hour))}}, []string{"b"}},
				{"decimal range", Query{Collection: "orders", Filters: []Filter{{Field: "total", Op: OpGt, Value: "10"}}}, []string{"a", "b"}},
				{"numeric order desc", Query{Collection: "orders", OrderBy: "count", Descending: true}, []string{"c", "a", "b"}},
				{"ordered limit", Query{Collection: "orders", OrderBy: "created_at", Descending: true, Limit: 2}, []string{"c", "b"}},
				{"other collection", Query{Collection: "products"}, []string{}},
			}
			for _, tt := range tests {
				docs, err := s.Query(ctx, tt.q)
				require.NoError(t, err, tt.name)
				if diff := cmp.Diff(tt.want, ids(docs)); diff != "" {
					t.Errorf("%s: mismatch (-want +got):\n%s", tt.name, diff)
				}
			}
		})
	}
}

func TestDocumentStore_EqualityIsExact(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	docs := []fixture{
		{ID: "a", CustomerID: "042", Status: "2026-03-01T09:00:00Z", Total: "10.0"},
		{ID: "b", CustomerID: "42", Status: "2026-03-01T14:45:00+05:45", Total: "10"},
	}
	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"eq does not coerce numbers", Query{Collection: "orders", Filters: []Filter{Eq("customer_id", "42")}}, []string{"b"}},
		{"in does not coerce numbers", Query{Collection: "orders", Filters: []Filter{In("customer_id", []string{"042"})}}, []string{"a"}},
		{"eq does not coerce timestamps", Query{Collection: "orders", Filters: []Filter{Eq("status", base.Format(time.RFC3339))}}, []string{"a"}},
		{"eq does not coerce decimals", Query{Collection: "orders", Filters: []Filter{Eq("total", "10")}}, []string{"b"}},
		{"range still compares decimals", Query{Collection: "orders", Filters: []Filter{{Field: "total", Op: OpGte, Value: "10"}}}, []string{"a", "b"}},
	}

	results := make(map[string]map[string][]string)
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			for _, f := range docs {
				_, err := s.Put(context.Background(), "orders", f.ID, f)
				require.NoError(t, err)
			}
			results[name] = make(map[string][]string)
			for _, tt := range tests {
				got, err := s.Query(context.Background(), tt.q)
				require.NoError(t, err, tt.name)
				results[name][tt.name] = ids(got)
				if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
					t.Errorf("%s: mismatch (-want +got):\n%s", tt.name, diff)
				}
			}
		})
	}
	if diff := cmp.Diff(results["memory"], results["sqlite"]); diff != "" {
		t.Errorf("backends disagree (-memory +sqlite):\n%s", diff)
	}
}

func TestDocumentStore_GetPutDelete(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			_, err := s.Get(ctx, "orders", "missing")
			assert.True(t, errors.Is(err, model.ErrNotFound))

			_, err = s.Put(ctx, "orders", "x", fixture{ID: "x", Status: "pending"})
			require.NoError(t, err)
			_, err = s.Put(ctx, "orders", "x", fixture{ID: "x", Status: "confirmed"})
			require.NoError(t, err)

			doc, err := s.Get(ctx, "orders", "x")
			require.NoError(t, err)
			var got fixture
			require.NoError(t, doc.Decode(&got))
			assert.Equal(t, "confirmed", got.Status, "last write wins")
			assert.False(t, doc.UpdatedAt.IsZero())

			require.NoError(t, s.Delete(ctx, "orders", "x"))
			assert.True(t, errors.Is(s.Delete(ctx, "orders", "x"), model.ErrNotFound))
		})
	}
}

func TestDocumentStore_RejectsBadQuery(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Query(context.Background(), Query{})
	assert.Error(t, err)
	_, err = s.Query(context.Background(), Query{Collection: "orders", Filters: []Filter{{Field: "status", Op: "like", Value: "x"}}})
	assert.Error(t, err)
	_, err = s.Query(context.Background(), Query{Collection: "orders", Filters: []Filter{In("status", "pending")}})
	assert.Error(t, err)
}

func next(t *testing.T, sub *Subscription) Change {
	t.Helper()
	select {
	case c, ok := <-sub.Changes():
		require.True(t, ok, "changes channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestDocumentStore_Subscribe(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()

			sub, err := s.Subscribe(ctx, Query{Collection: "orders", Filters: []Filter{Eq("customer_id", "c1")}})
			require.NoError(t, err)
			defer sub.Close()
			assert.ElementsMatch(t, []string{"a", "c"}, ids(sub.Initial))

			_, err = s.Put(ctx, "orders", "d", fixture{ID: "d", CustomerID: "c1", Status: "pending"})
			require.NoError(t, err)
			c := next(t, sub)
			assert.Equal(t, ChangeAdded, c.Kind)
			assert.Equal(t, "d", c.Document.ID)

			// Writes outside the query are not delivered.
			_, err = s.Put(ctx, "orders", "e", fixture{ID: "e", CustomerID: "c9"})
			require.NoError(t, err)

			_, err = s.Put(ctx, "orders", "a", fixture{ID: "a", CustomerID: "c1", Status: "confirmed"})
			require.NoError(t, err)
			c = next(t, sub)
			assert.Equal(t, ChangeModified, c.Kind)
			assert.Equal(t, "a", c.Document.ID)

			// Leaving the query's result set is a removal.
			_, err = s.Put(ctx, "orders", "a", fixture{ID: "a", CustomerID: "c2"})
			require.NoError(t, err)
			c = next(t, sub)
			assert.Equal(t, ChangeRemoved, c.Kind)
			assert.Equal(t, "a", c.Document.ID)

			require.NoError(t, s.Delete(ctx, "orders", "c"))
			c = next(t, sub)
			assert.Equal(t, ChangeRemoved, c.Kind)
			assert.Equal(t, "c", c.Document.ID)
		})
	}
}

func TestSubscription_Teardown(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := s.Subscribe(ctx, Query{Collection: "orders"})
	require.NoError(t, err)
	explicit, err := s.Subscribe(context.Background(), Query{Collection: "orders"})
	require.NoError(t, err)

	// Queue changes nobody reads; teardown must still finish.
	for i := 0; i < 10; i++ {
		_, err := s.Put(context.Background(), "orders", "o", fixture{ID: "o", Count: i})
		require.NoError(t, err)
	}

	cancel()
	<-sub.Done()
	for range sub.Changes() {
	}

	explicit.Close()
	explicit.Close()
	for range explicit.Changes() {
	}

	require.NoError(t, s.Close())
}

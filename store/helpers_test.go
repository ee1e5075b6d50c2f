package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/arbor/internal/fixture"
	"github.com/jacentio/arbor/memstore"
	"github.com/jacentio/arbor/store"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// clock returns a clock starting at epoch that advances one second per call.
func clock() func() time.Time {
	var mu sync.Mutex
	now := epoch
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newBackend(t *testing.T) (*memstore.Store, *store.Registry) {
	t.Helper()
	reg := fixture.Registry()
	return memstore.New(reg, nil), reg
}

// seed stores es directly, bypassing repositories.
func seed(t *testing.T, b store.Backend, es ...store.Entity) {
	t.Helper()
	for _, e := range es {
		if e.Base().CreatedAt.IsZero() {
			e.Base().CreatedAt = epoch
		}
	}
	require.NoError(t, b.Commit(context.Background(), &store.ChangeSet{Added: es}))
}

// stored returns the persisted copy of an entity, deleted or not.
func stored[T store.Entity](t *testing.T, b store.Backend, entityType, id string) T {
	t.Helper()
	items, err := b.Find(context.Background(), store.NewQuery(entityType).Filter(store.Eq(store.IDColumn, id)))
	require.NoError(t, err)
	require.Len(t, items, 1, "%s#%s not stored", entityType, id)
	v, ok := items[0].(T)
	require.True(t, ok)
	return v
}

// library seeds one author with two books, a cover per book, reviews on the
// first book, a profile and an owned address.
func library(t *testing.T, b store.Backend) *fixture.Author {
	t.Helper()
	author := &fixture.Author{Model: store.Model{ID: "a1"}, Name: "Le Guin"}
	seed(t, b,
		author,
		&fixture.Book{Model: store.Model{ID: "b1"}, AuthorID: "a1", Title: "The Dispossessed", Year: 1974},
		&fixture.Book{Model: store.Model{ID: "b2"}, AuthorID: "a1", Title: "The Lathe of Heaven", Year: 1971},
		&fixture.Cover{Model: store.Model{ID: "c1"}, BookID: "b1", URL: "c1.png"},
		&fixture.Cover{Model: store.Model{ID: "c2"}, BookID: "b2", URL: "c2.png"},
		&fixture.Review{Model: store.Model{ID: "r1"}, BookID: "b1", Rating: 5},
		&fixture.Review{Model: store.Model{ID: "r2"}, BookID: "b1", Rating: 4},
		&fixture.Profile{Model: store.Model{ID: "p1"}, AuthorID: "a1", Bio: "Anarres"},
		&fixture.Address{Model: store.Model{ID: "ad1"}, AuthorID: "a1", City: "Portland"},
	)
	return author
}

// countingBackend counts Related calls.
type countingBackend struct {
	store.Backend
	mu      sync.Mutex
	related int
}

func (c *countingBackend) Related(ctx context.Context, rel store.Relation, owner store.Entity) ([]store.Entity, error) {
	c.mu.Lock()
	c.related++
	c.mu.Unlock()
	return c.Backend.Related(ctx, rel, owner)
}

func (c *countingBackend) relatedCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.related
}

// failingBackend fails every commit with err.
type failingBackend struct {
	store.Backend
	err error
}

func (f failingBackend) Commit(context.Context, *store.ChangeSet) error { return f.err }

// recordingBackend keeps every changeset it commits.
type recordingBackend struct {
	store.Backend
	mu      sync.Mutex
	commits []*store.ChangeSet
}

func (r *recordingBackend) Commit(ctx context.Context, cs *store.ChangeSet) error {
	r.mu.Lock()
	r.commits = append(r.commits, cs)
	r.mu.Unlock()
	return r.Backend.Commit(ctx, cs)
}

func (r *recordingBackend) lastCommit(t *testing.T) *store.ChangeSet {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.commits)
	return r.commits[len(r.commits)-1]
}

type descriptorFunc func(q *store.Query) error

func (f descriptorFunc) Apply(q *store.Query) error { return f(q) }

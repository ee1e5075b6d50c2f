// Package memstore provides an in-memory store.Backend.
//
// Rows are kept as JSON snapshots, so entities handed to or returned from the
// backend never alias stored state. Commits validate the whole changeset
// before applying any of it under a single lock.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/jacentio/arbor/internal/ref"
	"github.com/jacentio/arbor/store"
)

type table struct {
	rows  map[string][]byte
	order []string
}

// Store is an in-memory backend. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	registry *store.Registry
	tables   map[string]*table
	logger   *zap.Logger
}

var _ store.Backend = (*Store)(nil)

// New creates an empty Store for the types in registry.
func New(registry *store.Registry, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		registry: registry,
		tables:   make(map[string]*table),
		logger:   logger,
	}
}

// Len returns the number of stored rows of entityType, deleted ones included.
func (s *Store) Len(entityType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[entityType]; ok {
		return len(t.order)
	}
	return 0
}

// Count returns the number of rows matching q.
func (s *Store) Count(ctx context.Context, q store.Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	matched, err := s.match(q)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Find returns the rows matching q, ordered and sliced.
func (s *Store) Find(ctx context.Context, q store.Query) ([]store.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := s.registry.Type(q.EntityType)
	if err != nil {
		return nil, err
	}
	matched, err := s.match(q)
	if err != nil {
		return nil, err
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return less(matched[i].fields, matched[j].fields, q.OrderBy)
		})
	}
	matched = slice(matched, q.Offset, q.Limit)

	out := make([]store.Entity, 0, len(matched))
	for _, r := range matched {
		e := info.New()
		if err := json.Unmarshal(r.raw, e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ref.Of(q.EntityType, r.id), err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Related returns the live rows reachable from owner along rel.
func (s *Store) Related(ctx context.Context, rel store.Relation, owner store.Entity) ([]store.Entity, error) {
	if rel.Side == store.Principal {
		return s.Find(ctx, store.NewQuery(rel.Target).Filter(store.OwnerCond(rel, owner)))
	}

	fields, err := fieldsOf(owner)
	if err != nil {
		return nil, err
	}
	fk, _ := fields[rel.ForeignKey].(string)
	if fk == "" {
		return []store.Entity{}, nil
	}
	q := store.NewQuery(rel.Target).Filter(store.Eq(store.IDColumn, fk)).Live().Slice(0, 1)
	return s.Find(ctx, q)
}

// Commit applies cs atomically. Adding an existing id fails with
// store.ErrAlreadyExists; updating or removing a missing one with
// store.ErrNotFound. Nothing is written when any check fails.
func (s *Store) Commit(ctx context.Context, cs *store.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	type write struct {
		entityType string
		id         string
		raw        []byte
	}
	encode := func(es []store.Entity) ([]write, error) {
		out := make([]write, 0, len(es))
		for _, e := range es {
			if _, err := s.registry.Type(e.EntityType()); err != nil {
				return nil, err
			}
			raw, err := json.Marshal(e)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", ref.Of(e.EntityType(), e.Base().ID), err)
			}
			out = append(out, write{entityType: e.EntityType(), id: e.Base().ID, raw: raw})
		}
		return out, nil
	}

	added, err := encode(cs.Added)
	if err != nil {
		return err
	}
	updated, err := encode(cs.Updated)
	if err != nil {
		return err
	}
	removed := make([]write, 0, len(cs.Removed))
	for _, e := range cs.Removed {
		removed = append(removed, write{entityType: e.EntityType(), id: e.Base().ID})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending := ref.Set{}
	for _, w := range added {
		r := ref.Of(w.entityType, w.id)
		if s.exists(w.entityType, w.id) || !pending.Add(r) {
			return fmt.Errorf("%w: %s", store.ErrAlreadyExists, r)
		}
	}
	for _, ws := range [][]write{updated, removed} {
		for _, w := range ws {
			r := ref.Of(w.entityType, w.id)
			if !s.exists(w.entityType, w.id) && !pending.Has(r) {
				return fmt.Errorf("%w: %s", store.ErrNotFound, r)
			}
		}
	}

	for _, w := range added {
		t := s.table(w.entityType)
		t.rows[w.id] = w.raw
		t.order = append(t.order, w.id)
	}
	for _, w := range updated {
		s.table(w.entityType).rows[w.id] = w.raw
	}
	for _, w := range removed {
		t := s.table(w.entityType)
		if _, ok := t.rows[w.id]; !ok {
			continue
		}
		delete(t.rows, w.id)
		for i, id := range t.order {
			if id == w.id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}

	s.logger.Debug("changeset applied",
		zap.Int("added", len(added)),
		zap.Int("updated", len(updated)),
		zap.Int("removed", len(removed)),
	)
	return nil
}

func (s *Store) exists(entityType, id string) bool {
	t, ok := s.tables[entityType]
	if !ok {
		return false
	}
	_, ok = t.rows[id]
	return ok
}

// table must be called with the write lock held.
func (s *Store) table(entityType string) *table {
	t, ok := s.tables[entityType]
	if !ok {
		t = &table{rows: make(map[string][]byte)}
		s.tables[entityType] = t
	}
	return t
}

type row struct {
	id     string
	raw    []byte
	fields map[string]any
}

// match returns the rows of q.EntityType satisfying q.Where in insertion order.
func (s *Store) match(q store.Query) ([]row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	where, err := normalize(q.Where)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[q.EntityType]
	if !ok {
		return nil, nil
	}
	var out []row
	for _, id := range t.order {
		raw := t.rows[id]
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ref.Of(q.EntityType, id), err)
		}
		ok, err := eval(where, fields)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row{id: id, raw: raw, fields: fields})
		}
	}
	return out, nil
}

func slice(rows []row, offset, limit int) []row {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func fieldsOf(e store.Entity) (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jacentio/arbor/internal/ref"
)

// Cascader marks entities and their cascade dependents as soft-deleted.
//
// The walk is sequential and depth-first. A node is marked before its
// dependents are visited, so cycles and diamonds terminate; the visited set
// keyed by type#id keeps that true even when two walks share a timestamp.
type Cascader struct {
	relations RelationProvider
	loader    *Loader
	logger    *zap.Logger
}

// NewCascader creates a Cascader. A nil logger disables logging.
func NewCascader(relations RelationProvider, loader *Loader, logger *zap.Logger) *Cascader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cascader{
		relations: relations,
		loader:    loader,
		logger:    logger,
	}
}

type walk struct {
	now     time.Time
	cs      *ChangeSet
	visited ref.Set
	marked  int
}

// SoftDelete sets deleted_at = now on e and every live entity reachable
// through cascade relations, staging each as an update in cs after its
// subtree. Already-deleted entities are left untouched. Returns the number
// of entities marked.
func (c *Cascader) SoftDelete(ctx context.Context, e Entity, now time.Time, cs *ChangeSet) (int, error) {
	return c.SoftDeleteAll(ctx, []Entity{e}, now, cs)
}

// SoftDeleteAll is SoftDelete over several roots sharing one walk, so a row
// reached from more than one root is marked and staged once. A root that an
// earlier root's walk already staged through another instance gets the same
// timestamp without being staged again.
func (c *Cascader) SoftDeleteAll(ctx context.Context, es []Entity, now time.Time, cs *ChangeSet) (int, error) {
	w := &walk{now: now, cs: cs, visited: ref.Set{}}
	var err error
	for _, e := range es {
		r := ref.Of(e.EntityType(), e.Base().ID)
		if w.visited.Has(r) {
			w.stamp(e.Base())
			continue
		}
		if err = c.visit(ctx, e, w); err != nil {
			break
		}
	}

	c.logger.Debug("cascade soft delete",
		zap.Int("roots", len(es)),
		zap.Int("marked", w.marked),
		zap.Error(err),
	)
	return w.marked, err
}

// Propagate marks the cascade dependents of an entity that is already
// deleted, using its deletion timestamp. The entity itself isn't staged.
func (c *Cascader) Propagate(ctx context.Context, e Entity, cs *ChangeSet) (int, error) {
	deletedAt := e.Base().DeletedAt
	if deletedAt == nil {
		return 0, nil
	}
	w := &walk{now: *deletedAt, cs: cs, visited: ref.Set{}}
	w.visited.Add(ref.Of(e.EntityType(), e.Base().ID))
	err := c.descend(ctx, e, w)

	c.logger.Debug("cascade propagate",
		zap.String("entity", ref.Of(e.EntityType(), e.Base().ID)),
		zap.Int("marked", w.marked),
		zap.Error(err),
	)
	return w.marked, err
}

func (w *walk) stamp(m *Model) {
	if m.DeletedAt != nil {
		return
	}
	stamp := w.now
	m.DeletedAt = &stamp
	w.cs.OnRollback(func() { m.DeletedAt = nil })
}

func (c *Cascader) visit(ctx context.Context, e Entity, w *walk) error {
	m := e.Base()
	if !w.visited.Add(ref.Of(e.EntityType(), m.ID)) {
		return nil
	}
	if m.DeletedAt != nil {
		return nil
	}

	w.stamp(m)
	w.marked++

	if err := c.descend(ctx, e, w); err != nil {
		return err
	}

	w.cs.Update(e)
	return nil
}

func (c *Cascader) descend(ctx context.Context, e Entity, w *walk) error {
	for _, rel := range c.relations.RelationsOf(e.EntityType()) {
		if !rel.Cascades() {
			continue
		}
		related, err := c.loader.Load(ctx, e, rel)
		if err != nil {
			return err
		}
		for _, dep := range related {
			if err := c.visit(ctx, dep, w); err != nil {
				return err
			}
		}
	}
	return nil
}

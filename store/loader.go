package store

import (
	"context"
	"fmt"
)

// Loader returns navigation values, fetching them from the backend when they
// are not already in memory.
type Loader struct {
	backend Backend
}

// NewLoader creates a Loader over backend.
func NewLoader(backend Backend) *Loader {
	return &Loader{backend: backend}
}

// Load returns the values of rel on owner. Materialized navigations are
// returned as-is; otherwise the live related rows are fetched and, if owner
// implements RelationSetter, attached to it.
func (l *Loader) Load(ctx context.Context, owner Entity, rel Relation) ([]Entity, error) {
	if acc, ok := owner.(RelationAccessor); ok {
		if related, loaded := acc.Related(rel.Name); loaded {
			return related, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	related, err := l.backend.Related(ctx, rel, owner)
	if err != nil {
		return nil, fmt.Errorf("load %s.%s: %w", rel.Source, rel.Name, err)
	}
	if rel.Cardinality == Single && len(related) > 1 {
		related = related[:1]
	}

	if setter, ok := owner.(RelationSetter); ok {
		if err := setter.SetRelated(rel.Name, related); err != nil {
			return nil, fmt.Errorf("attach %s.%s: %w", rel.Source, rel.Name, err)
		}
	}
	return related, nil
}

// Include fetches rel for owner and attaches it, even if already loaded.
// Returns ErrNotIncludable if owner doesn't implement RelationSetter.
func (l *Loader) Include(ctx context.Context, owner Entity, rel Relation) error {
	setter, ok := owner.(RelationSetter)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrNotIncludable, rel.Source, rel.Name)
	}
	related, err := l.backend.Related(ctx, rel, owner)
	if err != nil {
		return fmt.Errorf("include %s.%s: %w", rel.Source, rel.Name, err)
	}
	if rel.Cardinality == Single && len(related) > 1 {
		related = related[:1]
	}
	return setter.SetRelated(rel.Name, related)
}

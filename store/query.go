package store

import (
	"context"
	"fmt"
)

// Query describes a read against one entity type. Values are immutable:
// every builder method returns a modified copy.
type Query struct {
	// EntityType is the registered type to read.
	EntityType string

	// Where filters rows. The zero Cond matches all rows.
	Where Cond

	// Include lists navigations to load onto each result.
	Include []string

	// OrderBy orders rows. Later terms break ties of earlier ones.
	OrderBy []Order

	// WithDeleted is set once the deleted filter has been decided.
	WithDeleted bool

	// NoTracking returns detached entities.
	NoTracking bool

	// Offset skips rows after ordering.
	Offset int

	// Limit caps the number of rows (0 = no limit).
	Limit int
}

// NewQuery returns a query over entityType matching every row.
func NewQuery(entityType string) Query {
	return Query{EntityType: entityType}
}

// Filter returns q with c ANDed to its condition.
func (q Query) Filter(c Cond) Query {
	q.Where = And(q.Where, c)
	return q
}

// Sort returns q ordered by orders, replacing any previous ordering.
func (q Query) Sort(orders ...Order) Query {
	q.OrderBy = append([]Order(nil), orders...)
	return q
}

// With returns q including the named navigations.
func (q Query) With(names ...string) Query {
	q.Include = append(append([]string(nil), q.Include...), names...)
	return q
}

// Live returns q excluding soft-deleted rows.
func (q Query) Live() Query {
	return q.Filter(LiveCond())
}

// Slice returns q restricted to [offset, offset+limit).
func (q Query) Slice(offset, limit int) Query {
	q.Offset = offset
	q.Limit = limit
	return q
}

// Unsliced returns q without offset and limit.
func (q Query) Unsliced() Query {
	q.Offset = 0
	q.Limit = 0
	return q
}

// Validate checks the slice bounds, the condition and ordering columns.
func (q Query) Validate() error {
	if q.Offset < 0 || q.Limit < 0 {
		return fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidPage, q.Offset, q.Limit)
	}
	if err := q.Where.Validate(); err != nil {
		return err
	}
	for _, o := range q.OrderBy {
		if err := ValidateColumn(o.Column); err != nil {
			return err
		}
	}
	return nil
}

// Descriptor translates a structured filter/sort description into query
// conditions and ordering.
type Descriptor interface {
	Apply(q *Query) error
}

// Backend is a persistence engine for entities.
type Backend interface {
	// Count returns the number of rows matching q, ignoring Offset and Limit.
	Count(ctx context.Context, q Query) (int, error)

	// Find returns the rows matching q in order, honoring Offset and Limit.
	Find(ctx context.Context, q Query) ([]Entity, error)

	// Related fetches the live rows reachable from owner along rel.
	// For principal-side relations the rows whose foreign key equals the
	// owner's id; for dependent-side relations the row the owner's foreign
	// key points at. Rows with deleted_at set are never returned.
	Related(ctx context.Context, rel Relation, owner Entity) ([]Entity, error)

	// Commit applies a changeset atomically.
	Commit(ctx context.Context, cs *ChangeSet) error
}

// ChangeSet stages mutations for a single atomic commit.
type ChangeSet struct {
	Added   []Entity
	Updated []Entity
	Removed []Entity

	undo []func()
}

// Add stages an insert.
func (cs *ChangeSet) Add(e Entity) { cs.Added = append(cs.Added, e) }

// Update stages an update.
func (cs *ChangeSet) Update(e Entity) { cs.Updated = append(cs.Updated, e) }

// Remove stages a structural removal.
func (cs *ChangeSet) Remove(e Entity) { cs.Removed = append(cs.Removed, e) }

// Len returns the number of staged mutations.
func (cs *ChangeSet) Len() int {
	return len(cs.Added) + len(cs.Updated) + len(cs.Removed)
}

// IsEmpty reports whether nothing is staged.
func (cs *ChangeSet) IsEmpty() bool { return cs.Len() == 0 }

// OnRollback registers f to restore in-memory state if the commit fails.
func (cs *ChangeSet) OnRollback(f func()) { cs.undo = append(cs.undo, f) }

// Rollback runs the registered restore functions in reverse order.
func (cs *ChangeSet) Rollback() {
	for i := len(cs.undo) - 1; i >= 0; i-- {
		cs.undo[i]()
	}
	cs.undo = nil
}

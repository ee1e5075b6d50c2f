package store

import (
	"time"
)

// Entity is the base interface for all storable types.
//
// Types embed [Model] and add EntityType:
//
//	type Author struct {
//	    store.Model
//	    Name string `db:"name" json:"name" dynamodbav:"name"`
//	}
//
//	func (a *Author) EntityType() string { return "author" }
type Entity interface {
	// EntityType returns the registered type name (e.g., "author").
	EntityType() string

	// Base returns the embedded identity and lifecycle fields.
	Base() *Model
}

// Model carries the identity and lifecycle timestamps shared by every entity.
type Model struct {
	ID        string     `db:"id" json:"id" dynamodbav:"id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at" dynamodbav:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at" dynamodbav:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at" dynamodbav:"deleted_at"`

	detached bool
}

// Base returns m. Promoted to every type embedding Model.
func (m *Model) Base() *Model { return m }

// IsDeleted reports whether the deletion timestamp is set.
func (m *Model) IsDeleted() bool { return m.DeletedAt != nil }

// IsDetached reports whether the entity was read without tracking.
func (m *Model) IsDetached() bool { return m.detached }

// RelationAccessor is implemented by entities that expose their navigations.
//
// Related returns the in-memory value of the named navigation and whether it
// is materialized. A nil reference or nil slice is not materialized; an empty
// non-nil slice is.
type RelationAccessor interface {
	Related(name string) (related []Entity, loaded bool)
}

// RelationSetter is implemented by entities that accept fetched navigation
// values. Required for includes.
type RelationSetter interface {
	SetRelated(name string, related []Entity) error
}

// One adapts a single-valued navigation for RelationAccessor implementations.
func One[T any, PT interface {
	*T
	Entity
}](v PT) ([]Entity, bool) {
	if v == nil {
		return nil, false
	}
	return []Entity{v}, true
}

// Many adapts a collection navigation for RelationAccessor implementations.
func Many[T Entity](vs []T) ([]Entity, bool) {
	if vs == nil {
		return nil, false
	}
	out := make([]Entity, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out, true
}

// AsOne converts fetched values for a single-valued navigation.
// Returns nil when related is empty.
func AsOne[T Entity](related []Entity) (T, error) {
	var zero T
	if len(related) == 0 {
		return zero, nil
	}
	v, ok := related[0].(T)
	if !ok {
		return zero, ErrTypeMismatch
	}
	return v, nil
}

// AsMany converts fetched values for a collection navigation.
// The result is never nil, so the navigation counts as materialized.
func AsMany[T Entity](related []Entity) ([]T, error) {
	out := make([]T, 0, len(related))
	for _, e := range related {
		v, ok := e.(T)
		if !ok {
			return nil, ErrTypeMismatch
		}
		out = append(out, v)
	}
	return out, nil
}

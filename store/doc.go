// Package store provides a generic data-access core with cascading soft deletes.
//
// Arbor sits between application code and an entity store. Reads and writes go
// through a [Repository], which composes queries, paginates, and on delete
// marks the whole dependent sub-graph of an entity as deleted, driven only by
// relationship metadata held in a [Registry].
//
// # Key Features
//
//   - Soft delete that cascades along principal-side relationships
//   - Guard against soft-deleting the dependent of a one-to-one relationship
//   - Lazy navigation loading that never returns deleted rows
//   - Count-then-slice pagination with optional filter/sort descriptors
//   - Pluggable backends (see memstore, sqlstore and dynamostore)
//
// # Entity Interfaces
//
// All entities embed [Model] and implement [Entity]:
//
//	type Entity interface {
//	    EntityType() string
//	    Base() *Model
//	}
//
// Entities with navigations implement [RelationAccessor] so cascades reuse
// values already in memory, and [RelationSetter] so fetched values can be
// attached and included:
//
//	func (a *Author) Related(name string) ([]store.Entity, bool) {
//	    switch name {
//	    case "books":
//	        return store.Many(a.Books)
//	    }
//	    return nil, false
//	}
//
// # Relationships
//
// Register types and foreign keys once at startup:
//
//	reg := store.NewRegistry()
//	reg.RegisterType(store.TypeInfo{Name: "author", Table: "authors", New: func() store.Entity { return &Author{} }})
//	reg.Register(store.Relationship{
//	    PrincipalType: "author",
//	    DependentType: "book",
//	    ForeignKey:    "author_id",
//	    PrincipalNav:  "books",
//	    OnDelete:      store.DeleteCascade,
//	})
//
// # Configuration
//
// Use [DefaultConfig] or [LoadConfig] with a prefix such as "ARBOR_".
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrOneToOneRelation] - soft delete of a one-to-one dependent
//   - [ErrNotFound] - entity to update or remove doesn't exist
//   - [ErrAlreadyExists] - entity with ID already exists
//   - [ErrDetached] - mutating an entity read without tracking
//   - [ErrInvalidPage] - negative index or non-positive size
//   - [ErrUnknownType], [ErrUnknownRelation] - missing registry metadata
//   - [ErrChangeSetTooLarge] - backend cannot commit the changeset atomically
package store

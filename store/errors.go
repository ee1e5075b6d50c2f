package store

import "errors"

var (
	// ErrOneToOneRelation is returned when soft-deleting an entity that holds a one-to-one foreign key.
	// Soft delete keeps the row and its key, so re-creating the counterpart would violate uniqueness.
	// Use a permanent delete or resolve the relation first.
	ErrOneToOneRelation = errors.New("arbor: entity has a one-to-one relationship; soft delete would block re-creation by the same foreign key")

	// ErrNotFound is returned when a row to update or remove doesn't exist.
	ErrNotFound = errors.New("arbor: entity not found")

	// ErrAlreadyExists is returned when adding an entity with an existing ID.
	ErrAlreadyExists = errors.New("arbor: entity already exists")

	// ErrDetached is returned when mutating an entity read without tracking.
	ErrDetached = errors.New("arbor: entity was read without tracking")

	// ErrInvalidPage is returned for a negative page index or non-positive page size.
	ErrInvalidPage = errors.New("arbor: invalid page index or size")

	// ErrUnknownType is returned when an entity type isn't registered.
	ErrUnknownType = errors.New("arbor: unknown entity type")

	// ErrUnknownRelation is returned when a navigation isn't registered.
	ErrUnknownRelation = errors.New("arbor: unknown relation")

	// ErrNotIncludable is returned when including a navigation on an entity without RelationSetter.
	ErrNotIncludable = errors.New("arbor: entity does not accept related values")

	// ErrTypeMismatch is returned when a backend yields an entity of an unexpected Go type.
	ErrTypeMismatch = errors.New("arbor: entity type mismatch")

	// ErrInvalidColumn is returned for a column name that isn't a plain identifier.
	ErrInvalidColumn = errors.New("arbor: invalid column name")

	// ErrUnsupportedCond is returned when a backend cannot evaluate a condition.
	ErrUnsupportedCond = errors.New("arbor: unsupported condition")

	// ErrChangeSetTooLarge is returned when a changeset exceeds what a backend can commit atomically.
	ErrChangeSetTooLarge = errors.New("arbor: changeset too large to commit atomically")
)

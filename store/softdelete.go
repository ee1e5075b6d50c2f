package store

// Column names managed by the core.
const (
	IDColumn        = "id"
	CreatedAtColumn = "created_at"
	UpdatedAtColumn = "updated_at"
	DeletedAtColumn = "deleted_at"
)

// IsDeleted checks if an entity is marked as deleted.
func IsDeleted(e Entity) bool {
	return e.Base().DeletedAt != nil
}

// LiveCond returns the condition excluding soft-deleted rows.
// Use this when building custom queries that need the deleted filter.
func LiveCond() Cond {
	return IsNull(DeletedAtColumn)
}

// OwnerCond returns the condition selecting the dependents of owner along a
// principal-side relation, excluding soft-deleted rows.
func OwnerCond(rel Relation, owner Entity) Cond {
	return And(Eq(rel.ForeignKey, owner.Base().ID), LiveCond())
}

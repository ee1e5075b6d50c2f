package store

import "fmt"

// Guard rejects soft deletes that would strand a one-to-one foreign key.
type Guard struct {
	relations RelationProvider
}

// NewGuard creates a Guard over relations.
func NewGuard(relations RelationProvider) *Guard {
	return &Guard{relations: relations}
}

// Check returns ErrOneToOneRelation if e's type declares a foreign key of a
// one-to-one relationship. Permanent deletes must not call Check.
func (g *Guard) Check(e Entity) error {
	entityType := e.EntityType()
	for _, fk := range g.relations.ForeignKeysOf(entityType) {
		if fk.Kind == OneToOne {
			return fmt.Errorf("%w: %s.%s references %s", ErrOneToOneRelation, entityType, fk.ForeignKey, fk.PrincipalType)
		}
	}
	return nil
}

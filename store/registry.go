package store

import "fmt"

// Kind is the multiplicity of a foreign-key relationship.
type Kind int

const (
	// OneToMany: many dependents reference one principal.
	OneToMany Kind = iota
	// OneToOne: at most one dependent references a principal.
	OneToOne
)

// Cardinality is the multiplicity of one end of a navigation.
type Cardinality int

const (
	Single Cardinality = iota
	Collection
)

// Side tells which end of a foreign key a navigation starts from.
type Side int

const (
	// Principal: the other side holds the foreign key back to this entity.
	Principal Side = iota
	// Dependent: this entity holds the foreign key.
	Dependent
)

// DeleteBehavior is the declared delete action of a relationship.
type DeleteBehavior int

const (
	DeleteNone DeleteBehavior = iota
	DeleteCascade
)

// Relationship declares a foreign key from a dependent type to a principal type.
type Relationship struct {
	// PrincipalType is the referenced entity type (e.g., "author").
	PrincipalType string

	// DependentType is the type holding the foreign key (e.g., "book").
	DependentType string

	// ForeignKey is the column on the dependent referencing the principal id (e.g., "author_id").
	ForeignKey string

	// Kind is OneToMany or OneToOne.
	Kind Kind

	// PrincipalNav is the navigation name on the principal (e.g., "books").
	// Empty when the principal exposes no navigation.
	PrincipalNav string

	// DependentNav is the navigation name on the dependent (e.g., "author").
	// Empty when the dependent exposes no navigation.
	DependentNav string

	// OnDelete is the delete behavior propagated from principal to dependent.
	OnDelete DeleteBehavior

	// Owned marks the dependent as a value type embedded in its principal.
	Owned bool
}

// Relation is a navigation from one entity type to another, derived from a Relationship.
type Relation struct {
	Name           string
	Source         string
	Target         string
	Cardinality    Cardinality
	Inverse        Cardinality
	Side           Side
	DeleteBehavior DeleteBehavior
	Owned          bool
	ForeignKey     string
}

// Cascades reports whether soft deletes propagate along r.
func (r Relation) Cascades() bool {
	return r.Side == Principal && r.DeleteBehavior == DeleteCascade && !r.Owned
}

// TypeInfo describes a storable entity type.
type TypeInfo struct {
	// Name is the entity type (matches Entity.EntityType).
	Name string

	// Table is the backing table name.
	Table string

	// New returns a zero entity of this type, ready to be scanned into.
	New func() Entity
}

// RelationProvider exposes relationship metadata.
type RelationProvider interface {
	// RelationsOf returns the navigations of an entity type in declaration order.
	RelationsOf(entityType string) []Relation

	// ForeignKeysOf returns relationships where entityType is the dependent.
	ForeignKeysOf(entityType string) []Relationship
}

// Registry holds all known entity types and relationships.
type Registry struct {
	types         map[string]TypeInfo
	byTable       map[string]TypeInfo
	relationships []Relationship
	navigations   map[string][]Relation
	foreignKeys   map[string][]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		types:         make(map[string]TypeInfo),
		byTable:       make(map[string]TypeInfo),
		relationships: []Relationship{},
		navigations:   make(map[string][]Relation),
		foreignKeys:   make(map[string][]Relationship),
	}
}

// RegisterType adds an entity type. The table defaults to the type name.
// This should be called during setup, before the registry is shared.
func (r *Registry) RegisterType(info TypeInfo) {
	if info.Table == "" {
		info.Table = info.Name
	}
	r.types[info.Name] = info
	r.byTable[info.Table] = info
}

// Register adds a relationship and derives the navigations on both ends.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.foreignKeys[rel.DependentType] = append(r.foreignKeys[rel.DependentType], rel)

	dependentEnd := Collection
	if rel.Kind == OneToOne {
		dependentEnd = Single
	}

	if rel.PrincipalNav != "" {
		r.navigations[rel.PrincipalType] = append(r.navigations[rel.PrincipalType], Relation{
			Name:           rel.PrincipalNav,
			Source:         rel.PrincipalType,
			Target:         rel.DependentType,
			Cardinality:    dependentEnd,
			Inverse:        Single,
			Side:           Principal,
			DeleteBehavior: rel.OnDelete,
			Owned:          rel.Owned,
			ForeignKey:     rel.ForeignKey,
		})
	}
	if rel.DependentNav != "" {
		r.navigations[rel.DependentType] = append(r.navigations[rel.DependentType], Relation{
			Name:           rel.DependentNav,
			Source:         rel.DependentType,
			Target:         rel.PrincipalType,
			Cardinality:    Single,
			Inverse:        dependentEnd,
			Side:           Dependent,
			DeleteBehavior: rel.OnDelete,
			ForeignKey:     rel.ForeignKey,
		})
	}
}

// Type returns the registered type info.
func (r *Registry) Type(name string) (TypeInfo, error) {
	info, ok := r.types[name]
	if !ok {
		return TypeInfo{}, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return info, nil
}

// TypeByTable returns the type info backed by table.
func (r *Registry) TypeByTable(table string) (TypeInfo, error) {
	info, ok := r.byTable[table]
	if !ok {
		return TypeInfo{}, fmt.Errorf("%w: table %q", ErrUnknownType, table)
	}
	return info, nil
}

// Types returns all registered types.
func (r *Registry) Types() []TypeInfo {
	out := make([]TypeInfo, 0, len(r.types))
	for _, info := range r.types {
		out = append(out, info)
	}
	return out
}

// RelationsOf returns all navigations of an entity type.
func (r *Registry) RelationsOf(entityType string) []Relation {
	return r.navigations[entityType]
}

// Relation returns the named navigation of an entity type.
func (r *Registry) Relation(entityType, name string) (Relation, error) {
	for _, rel := range r.navigations[entityType] {
		if rel.Name == name {
			return rel, nil
		}
	}
	return Relation{}, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, entityType, name)
}

// ForeignKeysOf returns relationships whose foreign key is declared on entityType.
func (r *Registry) ForeignKeysOf(entityType string) []Relationship {
	return r.foreignKeys[entityType]
}

// ChildrenOf returns the cascade navigations of a principal type.
func (r *Registry) ChildrenOf(entityType string) []Relation {
	var out []Relation
	for _, rel := range r.navigations[entityType] {
		if rel.Cascades() {
			out = append(out, rel)
		}
	}
	return out
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren returns true if the type has any cascade navigations.
func (r *Registry) HasChildren(entityType string) bool {
	return len(r.ChildrenOf(entityType)) > 0
}

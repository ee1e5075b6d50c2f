// Package fixture defines a small library domain shared by tests.
//
//	author ──cascade──▶ books ──cascade──▶ cover (1:1)
//	   │                  └──────────────▶ reviews (no cascade)
//	   ├──cascade──▶ profile (1:1)
//	   └──cascade──▶ address (owned)
//	node ──cascade──▶ children (self-referencing, may form cycles)
package fixture

import (
	"github.com/jacentio/arbor/store"
)

const (
	TypeAuthor  = "author"
	TypeBook    = "book"
	TypeCover   = "cover"
	TypeReview  = "review"
	TypeProfile = "profile"
	TypeAddress = "address"
	TypeNode    = "node"
)

type Author struct {
	store.Model
	Name string `db:"name" json:"name" dynamodbav:"name"`

	Books   []*Book  `db:"-" json:"-" dynamodbav:"-"`
	Profile *Profile `db:"-" json:"-" dynamodbav:"-"`
	Address *Address `db:"-" json:"-" dynamodbav:"-"`
}

func (a *Author) EntityType() string { return TypeAuthor }

func (a *Author) Related(name string) ([]store.Entity, bool) {
	switch name {
	case "books":
		return store.Many(a.Books)
	case "profile":
		return store.One(a.Profile)
	case "address":
		return store.One(a.Address)
	}
	return nil, false
}

func (a *Author) SetRelated(name string, related []store.Entity) (err error) {
	switch name {
	case "books":
		a.Books, err = store.AsMany[*Book](related)
	case "profile":
		a.Profile, err = store.AsOne[*Profile](related)
	case "address":
		a.Address, err = store.AsOne[*Address](related)
	}
	return err
}

type Book struct {
	store.Model
	AuthorID string `db:"author_id" json:"author_id" dynamodbav:"author_id"`
	Title    string `db:"title" json:"title" dynamodbav:"title"`
	Year     int    `db:"year" json:"year" dynamodbav:"year"`

	Author  *Author   `db:"-" json:"-" dynamodbav:"-"`
	Cover   *Cover    `db:"-" json:"-" dynamodbav:"-"`
	Reviews []*Review `db:"-" json:"-" dynamodbav:"-"`
}

func (b *Book) EntityType() string { return TypeBook }

func (b *Book) Related(name string) ([]store.Entity, bool) {
	switch name {
	case "author":
		return store.One(b.Author)
	case "cover":
		return store.One(b.Cover)
	case "reviews":
		return store.Many(b.Reviews)
	}
	return nil, false
}

func (b *Book) SetRelated(name string, related []store.Entity) (err error) {
	switch name {
	case "author":
		b.Author, err = store.AsOne[*Author](related)
	case "cover":
		b.Cover, err = store.AsOne[*Cover](related)
	case "reviews":
		b.Reviews, err = store.AsMany[*Review](related)
	}
	return err
}

type Cover struct {
	store.Model
	BookID string `db:"book_id" json:"book_id" dynamodbav:"book_id"`
	URL    string `db:"url" json:"url" dynamodbav:"url"`
}

func (c *Cover) EntityType() string { return TypeCover }

// Review has no navigations, so cascades always fetch it.
type Review struct {
	store.Model
	BookID string `db:"book_id" json:"book_id" dynamodbav:"book_id"`
	Rating int    `db:"rating" json:"rating" dynamodbav:"rating"`
}

func (r *Review) EntityType() string { return TypeReview }

type Profile struct {
	store.Model
	AuthorID string `db:"author_id" json:"author_id" dynamodbav:"author_id"`
	Bio      string `db:"bio" json:"bio" dynamodbav:"bio"`
}

func (p *Profile) EntityType() string { return TypeProfile }

type Address struct {
	store.Model
	AuthorID string `db:"author_id" json:"author_id" dynamodbav:"author_id"`
	City     string `db:"city" json:"city" dynamodbav:"city"`
}

func (a *Address) EntityType() string { return TypeAddress }

type Node struct {
	store.Model
	ParentID string `db:"parent_id" json:"parent_id" dynamodbav:"parent_id"`
	Label    string `db:"label" json:"label" dynamodbav:"label"`

	Children []*Node `db:"-" json:"-" dynamodbav:"-"`
}

func (n *Node) EntityType() string { return TypeNode }

func (n *Node) Related(name string) ([]store.Entity, bool) {
	if name == "children" {
		return store.Many(n.Children)
	}
	return nil, false
}

func (n *Node) SetRelated(name string, related []store.Entity) (err error) {
	if name == "children" {
		n.Children, err = store.AsMany[*Node](related)
	}
	return err
}

// Registry returns a registry with every fixture type and relationship.
func Registry() *store.Registry {
	reg := store.NewRegistry()

	reg.RegisterType(store.TypeInfo{Name: TypeAuthor, Table: "authors", New: func() store.Entity { return &Author{} }})
	reg.RegisterType(store.TypeInfo{Name: TypeBook, Table: "books", New: func() store.Entity { return &Book{} }})
	reg.RegisterType(store.TypeInfo{Name: TypeCover, Table: "covers", New: func() store.Entity { return &Cover{} }})
	reg.RegisterType(store.TypeInfo{Name: TypeReview, Table: "reviews", New: func() store.Entity { return &Review{} }})
	reg.RegisterType(store.TypeInfo{Name: TypeProfile, Table: "profiles", New: func() store.Entity { return &Profile{} }})
	reg.RegisterType(store.TypeInfo{Name: TypeAddress, Table: "addresses", New: func() store.Entity { return &Address{} }})
	reg.RegisterType(store.TypeInfo{Name: TypeNode, Table: "nodes", New: func() store.Entity { return &Node{} }})

	reg.Register(store.Relationship{
		PrincipalType: TypeAuthor,
		DependentType: TypeBook,
		ForeignKey:    "author_id",
		Kind:          store.OneToMany,
		PrincipalNav:  "books",
		DependentNav:  "author",
		OnDelete:      store.DeleteCascade,
	})
	reg.Register(store.Relationship{
		PrincipalType: TypeAuthor,
		DependentType: TypeProfile,
		ForeignKey:    "author_id",
		Kind:          store.OneToOne,
		PrincipalNav:  "profile",
		OnDelete:      store.DeleteCascade,
	})
	reg.Register(store.Relationship{
		PrincipalType: TypeAuthor,
		DependentType: TypeAddress,
		ForeignKey:    "author_id",
		Kind:          store.OneToOne,
		PrincipalNav:  "address",
		OnDelete:      store.DeleteCascade,
		Owned:         true,
	})
	reg.Register(store.Relationship{
		PrincipalType: TypeBook,
		DependentType: TypeCover,
		ForeignKey:    "book_id",
		Kind:          store.OneToOne,
		PrincipalNav:  "cover",
		OnDelete:      store.DeleteCascade,
	})
	reg.Register(store.Relationship{
		PrincipalType: TypeBook,
		DependentType: TypeReview,
		ForeignKey:    "book_id",
		Kind:          store.OneToMany,
		PrincipalNav:  "reviews",
		OnDelete:      store.DeleteNone,
	})
	reg.Register(store.Relationship{
		PrincipalType: TypeNode,
		DependentType: TypeNode,
		ForeignKey:    "parent_id",
		Kind:          store.OneToMany,
		PrincipalNav:  "children",
		OnDelete:      store.DeleteCascade,
	})

	return reg
}

// Schema is the DDL for the fixture tables, valid for SQLite and PostgreSQL.
const Schema = `
CREATE TABLE authors (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NULL,
	deleted_at TIMESTAMP NULL,
	name TEXT NOT NULL DEFAULT ''
);
CREATE TABLE books (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NULL,
	deleted_at TIMESTAMP NULL,
	author_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE covers (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NULL,
	deleted_at TIMESTAMP NULL,
	book_id TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT ''
);
CREATE TABLE reviews (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NULL,
	deleted_at TIMESTAMP NULL,
	book_id TEXT NOT NULL DEFAULT '',
	rating INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE profiles (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NULL,
	deleted_at TIMESTAMP NULL,
	author_id TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT ''
);
CREATE TABLE addresses (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NULL,
	deleted_at TIMESTAMP NULL,
	author_id TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT ''
);
CREATE TABLE nodes (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NULL,
	deleted_at TIMESTAMP NULL,
	parent_id TEXT NOT NULL DEFAULT '',
	label TEXT NOT NULL DEFAULT ''
);
`

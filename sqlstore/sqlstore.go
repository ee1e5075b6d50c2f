// Package sqlstore provides a store.Backend over a relational database.
//
// Statements are built with go-sqlbuilder from the entity's db tags and run
// through sqlx. Each commit runs in one transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jacentio/arbor/internal/ref"
	"github.com/jacentio/arbor/store"
)

// Store is a SQL backend. Safe for concurrent use.
type Store struct {
	db       *sqlx.DB
	registry *store.Registry
	flavor   sqlbuilder.Flavor
	logger   *zap.Logger
}

var _ store.Backend = (*Store)(nil)

// New creates a Store over db for the types in registry.
func New(db *sqlx.DB, registry *store.Registry, config Config, logger *zap.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:       db,
		registry: registry,
		flavor:   config.flavor(),
		logger:   logger,
	}
}

// Count returns the number of rows matching q.
func (s *Store) Count(ctx context.Context, q store.Query) (int, error) {
	info, err := s.registry.Type(q.EntityType)
	if err != nil {
		return 0, err
	}
	if err := q.Validate(); err != nil {
		return 0, err
	}

	sb := s.flavor.NewSelectBuilder()
	sb.Select("COUNT(*)").From(info.Table)
	if err := s.applyWhere(sb, q.Where); err != nil {
		return 0, err
	}

	query, args := sb.Build()
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", info.Table, err)
	}
	return count, nil
}

// Find returns the rows matching q, ordered and sliced in SQL.
func (s *Store) Find(ctx context.Context, q store.Query) ([]store.Entity, error) {
	info, err := s.registry.Type(q.EntityType)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	sb := sqlbuilder.NewStruct(info.New()).For(s.flavor).SelectFrom(info.Table)
	if err := s.applyWhere(sb, q.Where); err != nil {
		return nil, err
	}
	if len(q.OrderBy) > 0 {
		sb.OrderBy(orderBy(q.OrderBy)...)
	}
	switch {
	case q.Limit > 0:
		sb.Limit(q.Limit)
	case q.Offset > 0:
		sb.Limit(math.MaxInt32)
	}
	if q.Offset > 0 {
		sb.Offset(q.Offset)
	}

	query, args := sb.Build()
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", info.Table, err)
	}
	defer rows.Close()

	out := []store.Entity{}
	for rows.Next() {
		e := info.New()
		if err := rows.StructScan(e); err != nil {
			return nil, fmt.Errorf("scan %s: %w", info.Table, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", info.Table, err)
	}
	return out, nil
}

// Related returns the live rows reachable from owner along rel.
func (s *Store) Related(ctx context.Context, rel store.Relation, owner store.Entity) ([]store.Entity, error) {
	if rel.Side == store.Principal {
		return s.Find(ctx, store.NewQuery(rel.Target).Filter(store.OwnerCond(rel, owner)))
	}

	fk, err := s.column(owner, rel.ForeignKey)
	if err != nil {
		return nil, err
	}
	if fk == nil || reflect.ValueOf(fk).IsZero() {
		return []store.Entity{}, nil
	}
	q := store.NewQuery(rel.Target).Filter(store.Eq(store.IDColumn, fk)).Live().Slice(0, 1)
	return s.Find(ctx, q)
}

// column reads the field of e mapped to column by its db tag.
func (s *Store) column(e store.Entity, column string) (any, error) {
	v := reflect.Indirect(reflect.ValueOf(e))
	fi := s.db.Mapper.TypeMap(v.Type()).GetByPath(column)
	if fi == nil {
		return nil, fmt.Errorf("%w: %s has no column %q", store.ErrInvalidColumn, e.EntityType(), column)
	}
	f := v.FieldByIndex(fi.Index)
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return nil, nil
		}
		f = f.Elem()
	}
	return f.Interface(), nil
}

// Commit applies cs in one transaction. Adding an existing id fails with
// store.ErrAlreadyExists; updating or removing a missing one with
// store.ErrNotFound.
func (s *Store) Commit(ctx context.Context, cs *store.ChangeSet) (err error) {
	if cs.IsEmpty() {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	for _, e := range cs.Added {
		if err := s.insert(ctx, tx, e); err != nil {
			return err
		}
	}
	for _, e := range cs.Updated {
		if err := s.update(ctx, tx, e); err != nil {
			return err
		}
	}
	for _, e := range cs.Removed {
		if err := s.delete(ctx, tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("changeset committed",
		zap.Int("added", len(cs.Added)),
		zap.Int("updated", len(cs.Updated)),
		zap.Int("removed", len(cs.Removed)),
	)
	return nil
}

func (s *Store) insert(ctx context.Context, tx *sqlx.Tx, e store.Entity) error {
	info, err := s.registry.Type(e.EntityType())
	if err != nil {
		return err
	}
	r := ref.Of(e.EntityType(), e.Base().ID)

	sb := s.flavor.NewSelectBuilder()
	sb.Select("COUNT(*)").From(info.Table).Where(sb.Equal(store.IDColumn, e.Base().ID))
	query, args := sb.Build()
	var n int
	if err := tx.GetContext(ctx, &n, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", store.ErrAlreadyExists, r)
	}

	ib := sqlbuilder.NewStruct(e).For(s.flavor).InsertInto(info.Table, e)
	query, args = ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r, err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, tx *sqlx.Tx, e store.Entity) error {
	info, err := s.registry.Type(e.EntityType())
	if err != nil {
		return err
	}
	r := ref.Of(e.EntityType(), e.Base().ID)

	ub := sqlbuilder.NewStruct(e).For(s.flavor).Update(info.Table, e)
	ub.Where(ub.Equal(store.IDColumn, e.Base().ID))
	query, args := ub.Build()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r, err)
	}
	return affected(res, r)
}

func (s *Store) delete(ctx context.Context, tx *sqlx.Tx, e store.Entity) error {
	info, err := s.registry.Type(e.EntityType())
	if err != nil {
		return err
	}
	r := ref.Of(e.EntityType(), e.Base().ID)

	del := s.flavor.NewDeleteBuilder()
	del.DeleteFrom(info.Table).Where(del.Equal(store.IDColumn, e.Base().ID))
	query, args := del.Build()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r, err)
	}
	return affected(res, r)
}

func affected(res sql.Result, r string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected %s: %w", r, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, r)
	}
	return nil
}

func (s *Store) applyWhere(sb *sqlbuilder.SelectBuilder, c store.Cond) error {
	expr, err := where(&sb.Cond, c)
	if err != nil {
		return err
	}
	if expr != "" {
		sb.Where(expr)
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jacentio/arbor/internal/ref"
)

// Repository provides CRUD, soft delete and paged reads for one entity type.
// T is the pointer type registered for the entity (e.g., *Author).
type Repository[T Entity] struct {
	backend    Backend
	registry   *Registry
	entityType string

	guard    *Guard
	loader   *Loader
	cascader *Cascader

	config  Config
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
	clock   func() time.Time
}

// NewRepository creates a Repository for the registered type whose New
// returns a T.
func NewRepository[T Entity](backend Backend, registry *Registry, opts ...Option) (*Repository[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var info TypeInfo
	found := false
	for _, candidate := range registry.Types() {
		if _, ok := candidate.New().(T); ok {
			info, found = candidate, true
			break
		}
	}
	if !found {
		var zero T
		return nil, fmt.Errorf("%w: no registered type for %T", ErrUnknownType, zero)
	}

	loader := NewLoader(backend)
	return &Repository[T]{
		backend:    backend,
		registry:   registry,
		entityType: info.Name,
		guard:      NewGuard(registry),
		loader:     loader,
		cascader:   NewCascader(registry, loader, o.logger),
		config:     o.config,
		logger:     o.logger.With(zap.String("entity_type", info.Name)),
		metrics:    o.metrics,
		tracer:     o.tracer,
		clock:      o.clock,
	}, nil
}

// EntityType returns the entity type served by r.
func (r *Repository[T]) EntityType() string { return r.entityType }

// Query returns a query over all rows of the type, deleted ones included.
func (r *Repository[T]) Query() Query { return NewQuery(r.entityType) }

// Add stamps created_at, assigns an id if empty, and persists e.
func (r *Repository[T]) Add(ctx context.Context, e T) (_ T, err error) {
	ctx, span := r.start(ctx, "Add")
	defer func() { r.finish(span, "Add", err) }()

	if err := r.add(ctx, []T{e}); err != nil {
		var zero T
		return zero, err
	}
	return e, nil
}

// AddRange stamps and persists es in one commit.
func (r *Repository[T]) AddRange(ctx context.Context, es []T) (_ []T, err error) {
	ctx, span := r.start(ctx, "AddRange")
	defer func() { r.finish(span, "AddRange", err) }()

	if err := r.add(ctx, es); err != nil {
		return nil, err
	}
	return es, nil
}

// Update stamps updated_at and persists e.
func (r *Repository[T]) Update(ctx context.Context, e T) (_ T, err error) {
	ctx, span := r.start(ctx, "Update")
	defer func() { r.finish(span, "Update", err) }()

	if err := r.update(ctx, []T{e}); err != nil {
		var zero T
		return zero, err
	}
	return e, nil
}

// UpdateRange stamps and persists es in one commit.
func (r *Repository[T]) UpdateRange(ctx context.Context, es []T) (_ []T, err error) {
	ctx, span := r.start(ctx, "UpdateRange")
	defer func() { r.finish(span, "UpdateRange", err) }()

	if err := r.update(ctx, es); err != nil {
		return nil, err
	}
	return es, nil
}

// Delete soft-deletes e and its cascade dependents, or removes e when
// permanent is true. Soft deletes of one-to-one dependents fail with
// ErrOneToOneRelation.
func (r *Repository[T]) Delete(ctx context.Context, e T, permanent bool) (_ T, err error) {
	ctx, span := r.start(ctx, "Delete")
	span.SetAttributes(attribute.Bool("arbor.permanent", permanent))
	defer func() { r.finish(span, "Delete", err) }()

	if err := r.remove(ctx, []T{e}, permanent); err != nil {
		var zero T
		return zero, err
	}
	return e, nil
}

// DeleteRange deletes es in one commit.
func (r *Repository[T]) DeleteRange(ctx context.Context, es []T, permanent bool) (_ []T, err error) {
	ctx, span := r.start(ctx, "DeleteRange")
	span.SetAttributes(attribute.Bool("arbor.permanent", permanent))
	defer func() { r.finish(span, "DeleteRange", err) }()

	if err := r.remove(ctx, es, permanent); err != nil {
		return nil, err
	}
	return es, nil
}

// Exists reports whether any row matches.
func (r *Repository[T]) Exists(ctx context.Context, opts ExistsOptions) (_ bool, err error) {
	ctx, span := r.start(ctx, "Exists")
	defer func() { r.finish(span, "Exists", err) }()

	q, err := r.compose(nil, opts.Where, nil, nil, opts.WithDeleted, opts.NoTracking)
	if err != nil {
		return false, err
	}
	items, err := r.backend.Find(ctx, q.Slice(0, 1))
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// GetOne returns the first row matching where. found is false when no row
// matches; that is not an error.
func (r *Repository[T]) GetOne(ctx context.Context, where Cond, opts GetOptions) (_ T, found bool, err error) {
	ctx, span := r.start(ctx, "GetOne")
	defer func() { r.finish(span, "GetOne", err) }()

	var zero T
	q, err := r.compose(nil, where, opts.Include, nil, opts.WithDeleted, opts.NoTracking)
	if err != nil {
		return zero, false, err
	}
	items, err := r.backend.Find(ctx, q.Slice(0, 1))
	if err != nil {
		return zero, false, err
	}
	if len(items) == 0 {
		return zero, false, nil
	}
	out, err := r.materialize(ctx, q, items)
	if err != nil {
		return zero, false, err
	}
	return out[0], true, nil
}

// GetPage returns one page of the rows matching opts.
func (r *Repository[T]) GetPage(ctx context.Context, opts ListOptions) (_ *Page[T], err error) {
	ctx, span := r.start(ctx, "GetPage")
	defer func() { r.finish(span, "GetPage", err) }()

	q, err := r.compose(nil, opts.Where, opts.Include, opts.OrderBy, opts.WithDeleted, opts.NoTracking)
	if err != nil {
		return nil, err
	}
	return r.page(ctx, q, opts)
}

// GetPageDynamic applies d before the regular read pipeline of GetPage.
// opts.OrderBy, when set, replaces the ordering described by d.
func (r *Repository[T]) GetPageDynamic(ctx context.Context, d Descriptor, opts ListOptions) (_ *Page[T], err error) {
	ctx, span := r.start(ctx, "GetPageDynamic")
	defer func() { r.finish(span, "GetPageDynamic", err) }()

	q, err := r.compose(d, opts.Where, opts.Include, opts.OrderBy, opts.WithDeleted, opts.NoTracking)
	if err != nil {
		return nil, err
	}
	return r.page(ctx, q, opts)
}

// Find runs q as given. The deleted filter isn't added; use Query().Live().
func (r *Repository[T]) Find(ctx context.Context, q Query) (_ []T, err error) {
	ctx, span := r.start(ctx, "Find")
	defer func() { r.finish(span, "Find", err) }()

	q.EntityType = r.entityType
	if err := r.validateQuery(q); err != nil {
		return nil, err
	}
	items, err := r.backend.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return r.materialize(ctx, q, items)
}

func (r *Repository[T]) add(ctx context.Context, es []T) error {
	now := r.clock()
	cs := &ChangeSet{}
	for _, e := range es {
		m := e.Base()
		prevID, prevCreated := m.ID, m.CreatedAt
		cs.OnRollback(func() { m.ID, m.CreatedAt = prevID, prevCreated })

		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.CreatedAt = now
		cs.Add(e)
	}
	return r.commit(ctx, cs)
}

func (r *Repository[T]) update(ctx context.Context, es []T) error {
	now := r.clock()
	cs := &ChangeSet{}
	for _, e := range es {
		if err := r.checkTracked(e); err != nil {
			cs.Rollback()
			return err
		}
		m := e.Base()
		prev := m.UpdatedAt
		cs.OnRollback(func() { m.UpdatedAt = prev })

		stamp := now
		m.UpdatedAt = &stamp
		cs.Update(e)
	}
	return r.commit(ctx, cs)
}

func (r *Repository[T]) remove(ctx context.Context, es []T, permanent bool) error {
	roots := make([]Entity, 0, len(es))
	for _, e := range es {
		if err := r.checkTracked(e); err != nil {
			return err
		}
		if permanent {
			roots = append(roots, e)
			continue
		}
		if err := r.guard.Check(e); err != nil {
			r.logger.Warn("soft delete rejected",
				zap.String("entity", ref.Of(e.EntityType(), e.Base().ID)),
				zap.Error(err),
			)
			return err
		}
		roots = append(roots, e)
	}

	cs := &ChangeSet{}
	marked := 0
	if permanent {
		seen := ref.Set{}
		for _, e := range roots {
			if seen.Add(ref.Of(e.EntityType(), e.Base().ID)) {
				cs.Remove(e)
			}
		}
	} else {
		n, err := r.cascader.SoftDeleteAll(ctx, roots, r.clock(), cs)
		marked = n
		if err != nil {
			cs.Rollback()
			return err
		}
	}

	if err := r.commit(ctx, cs); err != nil {
		return err
	}
	if !permanent {
		r.metrics.observeCascade(r.entityType, marked)
	}
	return nil
}

func (r *Repository[T]) commit(ctx context.Context, cs *ChangeSet) error {
	if cs.IsEmpty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		cs.Rollback()
		return err
	}
	if err := r.backend.Commit(ctx, cs); err != nil {
		cs.Rollback()
		r.logger.Error("commit failed",
			zap.Int("added", len(cs.Added)),
			zap.Int("updated", len(cs.Updated)),
			zap.Int("removed", len(cs.Removed)),
			zap.Error(err),
		)
		return err
	}
	r.logger.Debug("committed changeset",
		zap.Int("added", len(cs.Added)),
		zap.Int("updated", len(cs.Updated)),
		zap.Int("removed", len(cs.Removed)),
	)
	return nil
}

func (r *Repository[T]) checkTracked(e T) error {
	if r.config.RejectDetached && e.Base().IsDetached() {
		return fmt.Errorf("%w: %s", ErrDetached, ref.Of(e.EntityType(), e.Base().ID))
	}
	return nil
}

// compose builds the read pipeline: descriptor, deleted filter, caller
// predicate, includes, then caller ordering.
func (r *Repository[T]) compose(d Descriptor, where Cond, include []string, orderBy []Order, withDeleted, noTracking bool) (Query, error) {
	q := r.Query()
	if d != nil {
		if err := d.Apply(&q); err != nil {
			return Query{}, fmt.Errorf("apply descriptor: %w", err)
		}
	}
	if !withDeleted {
		q = q.Live()
	}
	q.WithDeleted = withDeleted
	q.NoTracking = noTracking
	q = q.Filter(where)
	q = q.With(include...)
	if len(orderBy) > 0 {
		q = q.Sort(orderBy...)
	}
	if err := r.validateQuery(q); err != nil {
		return Query{}, err
	}
	return q, nil
}

func (r *Repository[T]) validateQuery(q Query) error {
	if err := q.Validate(); err != nil {
		return err
	}
	for _, name := range q.Include {
		if _, err := r.registry.Relation(r.entityType, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository[T]) page(ctx context.Context, q Query, opts ListOptions) (*Page[T], error) {
	size := opts.Size
	if size == 0 {
		size = r.config.DefaultPageSize
	}
	p, err := Paginate(ctx, r.backend, q, opts.Index, size)
	if err != nil {
		return nil, err
	}
	items, err := r.materialize(ctx, q, p.Items)
	if err != nil {
		return nil, err
	}
	return &Page[T]{
		Items: items,
		Index: p.Index,
		Size:  p.Size,
		Count: p.Count,
		Pages: p.Pages,
	}, nil
}

// materialize loads includes, applies tracking and converts to T.
func (r *Repository[T]) materialize(ctx context.Context, q Query, items []Entity) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, e := range items {
		for _, name := range q.Include {
			rel, err := r.registry.Relation(r.entityType, name)
			if err != nil {
				return nil, err
			}
			if err := r.loader.Include(ctx, e, rel); err != nil {
				return nil, err
			}
		}
		if q.NoTracking {
			e.Base().detached = true
		}
		t, ok := e.(T)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrTypeMismatch, e)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Repository[T]) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "Repository."+op,
		trace.WithAttributes(attribute.String("arbor.entity_type", r.entityType)),
	)
}

func (r *Repository[T]) finish(span trace.Span, op string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	r.metrics.observeOp(r.entityType, op, err)
}

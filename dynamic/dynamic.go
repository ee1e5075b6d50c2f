// Package dynamic translates client-supplied filter and sort descriptions into
// store conditions and orderings.
//
// A Query is typically decoded from a request body:
//
//	{
//	  "sort": [{"field": "year", "dir": "desc"}],
//	  "filter": {
//	    "logic": "or",
//	    "filters": [
//	      {"field": "title", "operator": "startswith", "value": "The"},
//	      {"field": "year", "operator": "gte", "value": 2000}
//	    ]
//	  }
//	}
package dynamic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jacentio/arbor/store"
)

var (
	// ErrUnknownOperator is returned for a filter operator outside the supported set.
	ErrUnknownOperator = errors.New("arbor/dynamic: unknown filter operator")

	// ErrUnknownLogic is returned for a logic other than "and" or "or".
	ErrUnknownLogic = errors.New("arbor/dynamic: unknown filter logic")

	// ErrUnknownDir is returned for a sort direction other than "asc" or "desc".
	ErrUnknownDir = errors.New("arbor/dynamic: unknown sort direction")
)

// Filter operators.
const (
	OpEq             = "eq"
	OpNeq            = "neq"
	OpLt             = "lt"
	OpLte            = "lte"
	OpGt             = "gt"
	OpGte            = "gte"
	OpIsNull         = "isnull"
	OpIsNotNull      = "isnotnull"
	OpStartsWith     = "startswith"
	OpEndsWith       = "endswith"
	OpContains       = "contains"
	OpDoesNotContain = "doesnotcontain"
)

// Query is a filter and sort description. It implements store.Descriptor.
type Query struct {
	Sort   []Sort  `json:"sort,omitempty"`
	Filter *Filter `json:"filter,omitempty"`
}

// Sort orders by one field. Dir is "asc" (default) or "desc".
type Sort struct {
	Field string `json:"field"`
	Dir   string `json:"dir"`
}

// Filter is one predicate, optionally combined with nested filters.
//
// When Field is set the filter's own predicate is combined with Filters
// using Logic ("and" by default). A filter with no Field only groups.
type Filter struct {
	Field    string   `json:"field,omitempty"`
	Operator string   `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`
	Logic    string   `json:"logic,omitempty"`
	Filters  []Filter `json:"filters,omitempty"`
}

var _ store.Descriptor = Query{}

// Apply ANDs the filter into q and replaces q's ordering with Sort when set.
func (d Query) Apply(q *store.Query) error {
	if d.Filter != nil {
		c, err := d.Filter.Cond()
		if err != nil {
			return err
		}
		*q = q.Filter(c)
	}
	if len(d.Sort) > 0 {
		orders := make([]store.Order, 0, len(d.Sort))
		for _, s := range d.Sort {
			o, err := s.Order()
			if err != nil {
				return err
			}
			orders = append(orders, o)
		}
		*q = q.Sort(orders...)
	}
	return q.Validate()
}

// Order converts s to a store ordering.
func (s Sort) Order() (store.Order, error) {
	if err := store.ValidateColumn(s.Field); err != nil {
		return store.Order{}, err
	}
	switch strings.ToLower(s.Dir) {
	case "", "asc":
		return store.Asc(s.Field), nil
	case "desc":
		return store.Desc(s.Field), nil
	}
	return store.Order{}, fmt.Errorf("%w: %q", ErrUnknownDir, s.Dir)
}

// Cond converts f and its nested filters to a store condition.
func (f Filter) Cond() (store.Cond, error) {
	conds := make([]store.Cond, 0, len(f.Filters)+1)
	if f.Field != "" {
		c, err := f.predicate()
		if err != nil {
			return store.Cond{}, err
		}
		conds = append(conds, c)
	}
	for _, sub := range f.Filters {
		c, err := sub.Cond()
		if err != nil {
			return store.Cond{}, err
		}
		conds = append(conds, c)
	}

	switch strings.ToLower(f.Logic) {
	case "", "and":
		return store.And(conds...), nil
	case "or":
		return store.Or(conds...), nil
	}
	return store.Cond{}, fmt.Errorf("%w: %q", ErrUnknownLogic, f.Logic)
}

func (f Filter) predicate() (store.Cond, error) {
	if err := store.ValidateColumn(f.Field); err != nil {
		return store.Cond{}, err
	}

	switch strings.ToLower(f.Operator) {
	case OpEq:
		return store.Eq(f.Field, f.Value), nil
	case OpNeq:
		return store.Ne(f.Field, f.Value), nil
	case OpLt:
		return store.Lt(f.Field, f.Value), nil
	case OpLte:
		return store.Lte(f.Field, f.Value), nil
	case OpGt:
		return store.Gt(f.Field, f.Value), nil
	case OpGte:
		return store.Gte(f.Field, f.Value), nil
	case OpIsNull:
		return store.IsNull(f.Field), nil
	case OpIsNotNull:
		return store.IsNotNull(f.Field), nil
	case OpStartsWith:
		return store.Like(f.Field, text(f.Value)+"%"), nil
	case OpEndsWith:
		return store.Like(f.Field, "%"+text(f.Value)), nil
	case OpContains:
		return store.Like(f.Field, "%"+text(f.Value)+"%"), nil
	case OpDoesNotContain:
		return store.Not(store.Like(f.Field, "%"+text(f.Value)+"%")), nil
	}
	return store.Cond{}, fmt.Errorf("%w: %q", ErrUnknownOperator, f.Operator)
}

// text renders v as a LIKE operand. % and _ in v keep their wildcard meaning.
func text(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

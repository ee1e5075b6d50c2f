package store

import (
	"fmt"
	"regexp"
)

// Op is a condition operator.
type Op string

const (
	OpEq        Op = "eq"
	OpNe        Op = "ne"
	OpLt        Op = "lt"
	OpLte       Op = "lte"
	OpGt        Op = "gt"
	OpGte       Op = "gte"
	OpIn        Op = "in"
	OpLike      Op = "like"
	OpIsNull    Op = "isnull"
	OpIsNotNull Op = "isnotnull"
	OpAnd       Op = "and"
	OpOr        Op = "or"
	OpNot       Op = "not"
)

// Cond is a backend-neutral predicate over entity columns.
// The zero Cond matches every row.
type Cond struct {
	Op     Op
	Column string
	Value  any
	Values []any
	Conds  []Cond
}

// IsZero reports whether c is the match-all condition.
func (c Cond) IsZero() bool { return c.Op == "" }

func Eq(column string, v any) Cond  { return Cond{Op: OpEq, Column: column, Value: v} }
func Ne(column string, v any) Cond  { return Cond{Op: OpNe, Column: column, Value: v} }
func Lt(column string, v any) Cond  { return Cond{Op: OpLt, Column: column, Value: v} }
func Lte(column string, v any) Cond { return Cond{Op: OpLte, Column: column, Value: v} }
func Gt(column string, v any) Cond  { return Cond{Op: OpGt, Column: column, Value: v} }
func Gte(column string, v any) Cond { return Cond{Op: OpGte, Column: column, Value: v} }

// In matches rows whose column equals any of vs.
func In(column string, vs ...any) Cond { return Cond{Op: OpIn, Column: column, Values: vs} }

// Like matches with SQL LIKE semantics: % is any run, _ is one character.
func Like(column, pattern string) Cond { return Cond{Op: OpLike, Column: column, Value: pattern} }

func IsNull(column string) Cond    { return Cond{Op: OpIsNull, Column: column} }
func IsNotNull(column string) Cond { return Cond{Op: OpIsNotNull, Column: column} }

// And combines conditions; zero conditions are dropped.
func And(conds ...Cond) Cond { return combine(OpAnd, conds) }

// Or combines conditions; zero conditions are dropped.
func Or(conds ...Cond) Cond { return combine(OpOr, conds) }

// Not negates c.
func Not(c Cond) Cond { return Cond{Op: OpNot, Conds: []Cond{c}} }

func combine(op Op, conds []Cond) Cond {
	kept := make([]Cond, 0, len(conds))
	for _, c := range conds {
		if !c.IsZero() {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return Cond{}
	case 1:
		return kept[0]
	}
	return Cond{Op: op, Conds: kept}
}

// Validate checks operators and column names throughout the tree.
func (c Cond) Validate() error {
	switch c.Op {
	case "":
		return nil
	case OpAnd, OpOr, OpNot:
		if c.Op == OpNot && len(c.Conds) != 1 {
			return fmt.Errorf("%w: not takes one operand", ErrUnsupportedCond)
		}
		for _, sub := range c.Conds {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
		return nil
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpIn, OpLike, OpIsNull, OpIsNotNull:
		return ValidateColumn(c.Column)
	}
	return fmt.Errorf("%w: operator %q", ErrUnsupportedCond, c.Op)
}

// Order is one ordering term.
type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateColumn rejects anything that isn't a plain identifier.
func ValidateColumn(column string) error {
	if !identRe.MatchString(column) {
		return fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
	return nil
}

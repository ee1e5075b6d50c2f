package sqlstore

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"github.com/jacentio/arbor/store"
)

// where renders c with the builder's placeholders. The zero Cond renders "".
func where(cond *sqlbuilder.Cond, c store.Cond) (string, error) {
	switch c.Op {
	case "":
		return "", nil
	case store.OpAnd, store.OpOr:
		exprs := make([]string, 0, len(c.Conds))
		for _, sub := range c.Conds {
			expr, err := where(cond, sub)
			if err != nil {
				return "", err
			}
			if expr != "" {
				exprs = append(exprs, expr)
			}
		}
		if c.Op == store.OpAnd {
			return cond.And(exprs...), nil
		}
		return cond.Or(exprs...), nil
	case store.OpNot:
		expr, err := where(cond, c.Conds[0])
		if err != nil {
			return "", err
		}
		return "NOT (" + expr + ")", nil
	case store.OpEq:
		return cond.Equal(c.Column, c.Value), nil
	case store.OpNe:
		return cond.NotEqual(c.Column, c.Value), nil
	case store.OpLt:
		return cond.LessThan(c.Column, c.Value), nil
	case store.OpLte:
		return cond.LessEqualThan(c.Column, c.Value), nil
	case store.OpGt:
		return cond.GreaterThan(c.Column, c.Value), nil
	case store.OpGte:
		return cond.GreaterEqualThan(c.Column, c.Value), nil
	case store.OpIn:
		if len(c.Values) == 0 {
			return "1 = 0", nil
		}
		return cond.In(c.Column, c.Values...), nil
	case store.OpLike:
		return cond.Like(c.Column, c.Value), nil
	case store.OpIsNull:
		return cond.IsNull(c.Column), nil
	case store.OpIsNotNull:
		return cond.IsNotNull(c.Column), nil
	}
	return "", fmt.Errorf("%w: operator %q", store.ErrUnsupportedCond, c.Op)
}

func orderBy(orders []store.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		out = append(out, strings.Join([]string{o.Column, dir}, " "))
	}
	return out
}

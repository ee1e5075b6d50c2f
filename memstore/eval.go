package memstore

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jacentio/arbor/store"
)

// normalize passes every operand through JSON so it compares like the
// decoded row fields (numbers become float64, times RFC 3339 strings).
func normalize(c store.Cond) (store.Cond, error) {
	var err error
	if c.Value != nil {
		if c.Value, err = jsonValue(c.Value); err != nil {
			return store.Cond{}, err
		}
	}
	if len(c.Values) > 0 {
		values := make([]any, len(c.Values))
		for i, v := range c.Values {
			if values[i], err = jsonValue(v); err != nil {
				return store.Cond{}, err
			}
		}
		c.Values = values
	}
	if len(c.Conds) > 0 {
		conds := make([]store.Cond, len(c.Conds))
		for i, sub := range c.Conds {
			if conds[i], err = normalize(sub); err != nil {
				return store.Cond{}, err
			}
		}
		c.Conds = conds
	}
	return c, nil
}

func jsonValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: operand %T: %v", store.ErrUnsupportedCond, v, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// eval follows SQL null semantics: comparisons against a null field are false.
func eval(c store.Cond, fields map[string]any) (bool, error) {
	switch c.Op {
	case "":
		return true, nil
	case store.OpAnd:
		for _, sub := range c.Conds {
			ok, err := eval(sub, fields)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case store.OpOr:
		for _, sub := range c.Conds {
			ok, err := eval(sub, fields)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case store.OpNot:
		ok, err := eval(c.Conds[0], fields)
		return !ok, err
	case store.OpIsNull:
		return fields[c.Column] == nil, nil
	case store.OpIsNotNull:
		return fields[c.Column] != nil, nil
	}

	field := fields[c.Column]
	if field == nil {
		return false, nil
	}

	switch c.Op {
	case store.OpIn:
		for _, v := range c.Values {
			if n, ok := compare(field, v); ok && n == 0 {
				return true, nil
			}
		}
		return false, nil
	case store.OpLike:
		s, ok := field.(string)
		pattern, pok := c.Value.(string)
		if !ok || !pok {
			return false, nil
		}
		return likePattern(pattern).MatchString(s), nil
	}

	n, ok := compare(field, c.Value)
	if !ok {
		return false, nil
	}
	switch c.Op {
	case store.OpEq:
		return n == 0, nil
	case store.OpNe:
		return n != 0, nil
	case store.OpLt:
		return n < 0, nil
	case store.OpLte:
		return n <= 0, nil
	case store.OpGt:
		return n > 0, nil
	case store.OpGte:
		return n >= 0, nil
	}
	return false, fmt.Errorf("%w: operator %q", store.ErrUnsupportedCond, c.Op)
}

// compare reports the ordering of a and b and whether they are comparable.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		if tx, err := time.Parse(time.RFC3339Nano, x); err == nil {
			if ty, err := time.Parse(time.RFC3339Nano, y); err == nil {
				return tx.Compare(ty), true
			}
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// less orders rows by orders. Nulls sort first.
func less(a, b map[string]any, orders []store.Order) bool {
	for _, o := range orders {
		x, y := a[o.Column], b[o.Column]
		var n int
		switch {
		case x == nil && y == nil:
			continue
		case x == nil:
			n = -1
		case y == nil:
			n = 1
		default:
			n, _ = compare(x, y)
		}
		if n == 0 {
			continue
		}
		if o.Desc {
			return n > 0
		}
		return n < 0
	}
	return false
}

// likePattern compiles a SQL LIKE pattern: % matches any run, _ one character.
func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

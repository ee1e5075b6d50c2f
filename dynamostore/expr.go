package dynamostore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/store"
)

// filter accumulates a filter expression with its placeholder maps.
type filter struct {
	names  map[string]string
	values map[string]types.AttributeValue
	byName map[string]string
}

func newFilter() *filter {
	return &filter{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
		byName: map[string]string{},
	}
}

func (f *filter) name(column string) string {
	if key, ok := f.byName[column]; ok {
		return key
	}
	key := "#n" + strconv.Itoa(len(f.byName))
	f.byName[column] = key
	f.names[key] = column
	return key
}

func (f *filter) value(v any) (string, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: operand %T: %v", store.ErrUnsupportedCond, v, err)
	}
	key := ":v" + strconv.Itoa(len(f.values))
	f.values[key] = av
	return key, nil
}

// expr renders c as a DynamoDB condition expression. The zero Cond renders "".
func (f *filter) expr(c store.Cond) (string, error) {
	switch c.Op {
	case "":
		return "", nil
	case store.OpAnd, store.OpOr:
		parts := make([]string, 0, len(c.Conds))
		for _, sub := range c.Conds {
			e, err := f.expr(sub)
			if err != nil {
				return "", err
			}
			if e != "" {
				parts = append(parts, "("+e+")")
			}
		}
		sep := " AND "
		if c.Op == store.OpOr {
			sep = " OR "
		}
		return strings.Join(parts, sep), nil
	case store.OpNot:
		e, err := f.expr(c.Conds[0])
		if err != nil {
			return "", err
		}
		return "NOT (" + e + ")", nil
	case store.OpIsNull:
		n := f.name(c.Column)
		null, _ := f.value("NULL")
		return fmt.Sprintf("(attribute_not_exists(%s) OR attribute_type(%s, %s))", n, n, null), nil
	case store.OpIsNotNull:
		n := f.name(c.Column)
		null, _ := f.value("NULL")
		return fmt.Sprintf("(attribute_exists(%s) AND NOT attribute_type(%s, %s))", n, n, null), nil
	case store.OpIn:
		n := f.name(c.Column)
		if len(c.Values) == 0 {
			return fmt.Sprintf("(attribute_exists(%s) AND attribute_not_exists(%s))", n, n), nil
		}
		keys := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			k, err := f.value(v)
			if err != nil {
				return "", err
			}
			keys = append(keys, k)
		}
		return fmt.Sprintf("%s IN (%s)", n, strings.Join(keys, ", ")), nil
	case store.OpLike:
		return f.like(c)
	}

	var op string
	switch c.Op {
	case store.OpEq:
		op = "="
	case store.OpNe:
		op = "<>"
	case store.OpLt:
		op = "<"
	case store.OpLte:
		op = "<="
	case store.OpGt:
		op = ">"
	case store.OpGte:
		op = ">="
	default:
		return "", fmt.Errorf("%w: operator %q", store.ErrUnsupportedCond, c.Op)
	}
	n := f.name(c.Column)
	v, err := f.value(c.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", n, op, v), nil
}

// like maps the LIKE shapes DynamoDB can evaluate: exact, prefix% and %infix%.
func (f *filter) like(c store.Cond) (string, error) {
	pattern, ok := c.Value.(string)
	if !ok {
		return "", fmt.Errorf("%w: like operand %T", store.ErrUnsupportedCond, c.Value)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%")
	leading := strings.HasPrefix(pattern, "%")
	trailing := len(pattern) > 1 && strings.HasSuffix(pattern, "%")
	if strings.ContainsAny(inner, "%_") {
		return "", fmt.Errorf("%w: like pattern %q", store.ErrUnsupportedCond, pattern)
	}

	n := f.name(c.Column)
	v, err := f.value(inner)
	if err != nil {
		return "", err
	}
	switch {
	case !leading && !trailing:
		return fmt.Sprintf("%s = %s", n, v), nil
	case !leading && trailing:
		return fmt.Sprintf("begins_with(%s, %s)", n, v), nil
	case leading && trailing:
		return fmt.Sprintf("contains(%s, %s)", n, v), nil
	}
	return "", fmt.Errorf("%w: like pattern %q", store.ErrUnsupportedCond, pattern)
}

// compareAttr orders two attribute values. Missing and NULL sort first.
func compareAttr(a, b types.AttributeValue) int {
	an, bn := isNull(a), isNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}

	switch x := a.(type) {
	case *types.AttributeValueMemberS:
		if y, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(x.Value, y.Value)
		}
	case *types.AttributeValueMemberN:
		if y, ok := b.(*types.AttributeValueMemberN); ok {
			xf, _ := strconv.ParseFloat(x.Value, 64)
			yf, _ := strconv.ParseFloat(y.Value, 64)
			switch {
			case xf < yf:
				return -1
			case xf > yf:
				return 1
			}
			return 0
		}
	case *types.AttributeValueMemberBOOL:
		if y, ok := b.(*types.AttributeValueMemberBOOL); ok {
			switch {
			case x.Value == y.Value:
				return 0
			case !x.Value:
				return -1
			}
			return 1
		}
	}
	return 0
}

func isNull(v types.AttributeValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(*types.AttributeValueMemberNULL)
	return ok
}

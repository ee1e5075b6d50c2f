package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/arbor/store"
)

func TestEval(t *testing.T) {
	deleted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fields := map[string]any{
		"title":      "The Dispossessed",
		"year":       float64(1974),
		"rating":     nil,
		"in_print":   true,
		"deleted_at": deleted.Format(time.RFC3339Nano),
	}

	tests := []struct {
		name string
		cond store.Cond
		want bool
	}{
		{"zero matches all", store.Cond{}, true},
		{"eq string", store.Eq("title", "The Dispossessed"), true},
		{"eq number", store.Eq("year", 1974), true},
		{"ne", store.Ne("year", 1974), false},
		{"lt", store.Lt("year", 1975), true},
		{"lte equal", store.Lte("year", 1974), true},
		{"gt", store.Gt("year", 1974), false},
		{"gte", store.Gte("year", 1900), true},
		{"bool", store.Eq("in_print", true), true},
		{"in hit", store.In("year", 1971, 1974), true},
		{"in miss", store.In("year", 1971), false},
		{"in empty", store.In("year"), false},
		{"like prefix", store.Like("title", "The %"), true},
		{"like single char", store.Like("title", "The Dispossesse_"), true},
		{"like is anchored", store.Like("title", "Dispossessed"), false},
		{"like escapes regexp", store.Like("title", "The.Dispossessed"), false},
		{"is null", store.IsNull("rating"), true},
		{"is null on missing column", store.IsNull("nope"), true},
		{"is not null", store.IsNotNull("title"), true},
		{"null never compares", store.Eq("rating", nil), false},
		{"null never ne", store.Ne("rating", 3), false},
		{"type mismatch", store.Eq("year", "1974"), false},
		{"time compare", store.Lt("deleted_at", deleted.Add(time.Second)), true},
		{"time equal across zones", store.Eq("deleted_at", deleted.In(time.FixedZone("X", 3600))), true},
		{"and", store.And(store.Eq("year", 1974), store.Like("title", "%Dis%")), true},
		{"and short circuit", store.And(store.Eq("year", 1), store.Eq("title", "The Dispossessed")), false},
		{"or", store.Or(store.Eq("year", 1), store.Eq("title", "The Dispossessed")), true},
		{"or none", store.Or(store.Eq("year", 1), store.Eq("year", 2)), false},
		{"not", store.Not(store.IsNull("rating")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := normalize(tt.cond)
			require.NoError(t, err)
			got, err := eval(c, fields)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_UnknownOperator(t *testing.T) {
	_, err := eval(store.Cond{Op: "between", Column: "year", Value: float64(1)}, map[string]any{"year": float64(1)})
	assert.ErrorIs(t, err, store.ErrUnsupportedCond)
}

func TestNormalize_Unencodable(t *testing.T) {
	_, err := normalize(store.Eq("year", make(chan int)))
	assert.ErrorIs(t, err, store.ErrUnsupportedCond)
}

func TestLess(t *testing.T) {
	a := map[string]any{"year": float64(1971), "title": "b"}
	b := map[string]any{"year": float64(1974), "title": "a"}
	null := map[string]any{"year": nil, "title": "c"}

	assert.True(t, less(a, b, []store.Order{store.Asc("year")}))
	assert.False(t, less(b, a, []store.Order{store.Asc("year")}))
	assert.True(t, less(b, a, []store.Order{store.Desc("year")}))
	assert.True(t, less(b, a, []store.Order{store.Asc("title")}))
	assert.True(t, less(null, a, []store.Order{store.Asc("year")}), "nulls first")
	assert.False(t, less(a, a, []store.Order{store.Asc("year")}))

	tie := map[string]any{"year": float64(1971), "title": "a"}
	assert.True(t, less(tie, a, []store.Order{store.Asc("year"), store.Asc("title")}))
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		pattern string
		in      string
		want    bool
	}{
		{"%", "", true},
		{"a%", "abc", true},
		{"%c", "abc", true},
		{"%b%", "abc", true},
		{"a_c", "abc", true},
		{"a_c", "abbc", false},
		{"a%", "line\nbreak a", false},
		{"%a", "line\nbreak a", true},
		{"(a)", "(a)", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, likePattern(tt.pattern).MatchString(tt.in))
		})
	}
}

package resource

import (
	"testing"

	"resource-api/internal/ports/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCondition(t *testing.T) {
	cases := []struct {
		in   string
		want docstore.Condition
	}{
		{"author.id = 3", docstore.Condition{Field: "author.id", Op: docstore.OpEq, Value: 3.0}},
		{"rank>=2", docstore.Condition{Field: "rank", Op: docstore.OpGte, Value: 2.0}},
		{"rank <= 2", docstore.Condition{Field: "rank", Op: docstore.OpLte, Value: 2.0}},
		{"rank > 2", docstore.Condition{Field: "rank", Op: docstore.OpGt, Value: 2.0}},
		{"rank < 2", docstore.Condition{Field: "rank", Op: docstore.OpLt, Value: 2.0}},
		{"name != 'Ada Lovelace'", docstore.Condition{Field: "name", Op: docstore.OpNeq, Value: "Ada Lovelace"}},
		{`name = "a = b"`, docstore.Condition{Field: "name", Op: docstore.OpEq, Value: "a = b"}},
		{"active = true", docstore.Condition{Field: "active", Op: docstore.OpEq, Value: true}},
		{"title = null", docstore.Condition{Field: "title", Op: docstore.OpEq, Value: nil}},
		{"email = ada@example.com", docstore.Condition{Field: "email", Op: docstore.OpEq, Value: "ada@example.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseCondition(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"", "id", "= 3", "id =", "first name = Ada"} {
		_, err := ParseCondition(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseFilterGroups(t *testing.T) {
	f, err := ParseFilter([]any{
		"rank > 1",
		[]any{"id = 1", "id = 2"},
		[]string{"name = Ada"},
	})
	require.NoError(t, err)
	require.Len(t, f, 3)
	assert.Len(t, f[0], 1)
	assert.Len(t, f[1], 2)
	assert.Equal(t, "name", f[2][0].Field)

	_, err = ParseFilter([]any{3})
	assert.Error(t, err)
	_, err = ParseFilter([]any{[]any{"id = 1", 2}})
	assert.Error(t, err)
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort([]string{"name", "createdAt:desc", "id:ASC"})
	require.NoError(t, err)
	assert.Equal(t, []docstore.Sort{
		{Field: "name"},
		{Field: "createdAt", Desc: true},
		{Field: "id"},
	}, s)

	_, err = ParseSort([]string{":desc"})
	assert.Error(t, err)
}

func TestFormatID(t *testing.T) {
	assert.Equal(t, "3", FormatID(3.0))
	assert.Equal(t, "3", FormatID(3))
	assert.Equal(t, "abc", FormatID("abc"))
	assert.Equal(t, "", FormatID(nil))
	assert.Len(t, RandomID(20), 20)
}

func TestSearchPropsFromAliases(t *testing.T) {
	p := SearchPropsFrom(map[string]any{
		"query":  "ada",
		"filter": []any{"id = 1"},
		"sort":   []any{"id:desc"},
		"limit":  20.0,
		"offset": 0.0,
		"size":   5.0,
		"from":   10.0,
	})
	assert.Equal(t, SearchProps{
		Query:  "ada",
		Filter: []any{"id = 1"},
		Sort:   []string{"id:desc"},
		Limit:  5,
		Offset: 10,
	}, p)

	p = SearchPropsFrom(map[string]any{"limit": 20.0, "offset": 40.0})
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 40, p.Offset)
}

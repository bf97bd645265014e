package relationships

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	model    string
	keyField string
	values   map[string]interface{}
}

func (s *fakeSource) GetModel() string    { return s.model }
func (s *fakeSource) GetKeyField() string { return s.keyField }

func (s *fakeSource) Raw(field string) (interface{}, bool) {
	v, ok := s.values[field]
	return v, ok
}

type fakeRef struct {
	model, table, key string
}

func (r fakeRef) Model() string    { return r.model }
func (r fakeRef) Table() string    { return r.table }
func (r fakeRef) KeyField() string { return r.key }

func TestNewOne_Defaults(t *testing.T) {
	src := &fakeSource{model: "post", keyField: "id", values: map[string]interface{}{"user_id": int64(7)}}

	d, err := NewOne(src, "user", fakeRef{"user", "users", "id"}, "", "", "")
	require.NoError(t, err)

	assert.Equal(t, Descriptor{
		Key:          "user",
		Target:       "user",
		TargetTable:  "users",
		ForeignKey:   "user_id",
		ReferenceKey: "id",
		Cardinality:  One,
	}, d)

	q, ok := d.Query(src)
	require.True(t, ok)
	assert.Equal(t, Query{
		Model:  "user",
		Table:  "users",
		Filter: map[string]interface{}{"id": int64(7)},
		Limit:  1,
	}, q)
}

func TestNewOne_Overrides(t *testing.T) {
	src := &fakeSource{model: "post", values: map[string]interface{}{"writer": "ada"}}

	d, err := NewOne(src, "user", fakeRef{"user", "users", "id"}, "author", "writer", "login")
	require.NoError(t, err)

	q, ok := d.Query(src)
	require.True(t, ok)
	assert.Equal(t, "author", d.Key)
	assert.Equal(t, map[string]interface{}{"login": "ada"}, q.Filter)
}

func TestNewMany_Defaults(t *testing.T) {
	src := &fakeSource{model: "user", keyField: "id", values: map[string]interface{}{"id": int64(3)}}

	d, err := NewMany(src, "post", fakeRef{"post", "posts", "id"}, "posts", "", "")
	require.NoError(t, err)

	assert.Equal(t, "user_id", d.ForeignKey)
	assert.Equal(t, "id", d.ReferenceKey)
	assert.Equal(t, "id", d.SourceField())
	assert.Equal(t, "user_id", d.TargetField())

	q, ok := d.Query(src)
	require.True(t, ok)
	assert.Equal(t, Query{
		Model:  "post",
		Table:  "posts",
		Filter: map[string]interface{}{"user_id": int64(3)},
	}, q)
}

func TestNewMany_UsesSourceReferenceKey(t *testing.T) {
	src := &fakeSource{model: "user", keyField: "id", values: map[string]interface{}{"id": int64(3), "uuid": "u-1"}}

	d, err := NewMany(src, "post", fakeRef{"post", "posts", "id"}, "", "owner_uuid", "uuid")
	require.NoError(t, err)

	q, ok := d.Query(src)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"owner_uuid": "u-1"}, q.Filter)
}

func TestNoReferenceKey(t *testing.T) {
	keyless := &fakeSource{model: "log"}

	_, err := NewOne(keyless, "tag", fakeRef{"tag", "tag", ""}, "", "", "")
	assert.ErrorIs(t, err, ErrNoReferenceKey)

	_, err = NewMany(keyless, "line", fakeRef{"line", "line", "id"}, "", "", "")
	assert.ErrorIs(t, err, ErrNoReferenceKey)
	assert.EqualError(t, err, "log.line: link has no reference key")
}

func TestQuery_ZeroSentinelRecheckedEachCall(t *testing.T) {
	src := &fakeSource{model: "user", keyField: "id", values: map[string]interface{}{"id": nil}}
	d, err := NewMany(src, "post", fakeRef{"post", "posts", "id"}, "", "", "")
	require.NoError(t, err)

	_, ok := d.Query(src)
	assert.False(t, ok)

	src.values["id"] = int64(9)
	q, ok := d.Query(src)
	require.True(t, ok)
	assert.Equal(t, int64(9), q.Filter["user_id"])
}

func TestIsZero(t *testing.T) {
	tests := []struct {
		value interface{}
		want  bool
	}{
		{nil, true},
		{"", true},
		{"0", true},
		{0, true},
		{int64(0), true},
		{float64(0), true},
		{[]byte("0"), true},
		{"00", false},
		{"a", false},
		{int64(1), false},
		{-1, false},
		{true, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsZero(tt.value), "IsZero(%#v)", tt.value)
	}
}

func TestSet(t *testing.T) {
	s := NewSet()
	s.Declare(Descriptor{Key: "user", ForeignKey: "user_id", ReferenceKey: "id", Cardinality: One})
	s.Declare(Descriptor{Key: "posts", ForeignKey: "user_id", ReferenceKey: "id", Cardinality: Many})
	s.Declare(Descriptor{Key: "comments", ForeignKey: "author_id", ReferenceKey: "id", Cardinality: Many})

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"comments", "posts", "user"}, s.Keys())
	assert.Equal(t, []string{"user"}, s.DependsOn("user_id"))
	assert.Equal(t, []string{"comments", "posts"}, s.DependsOn("id"))

	s.Declare(Descriptor{Key: "user", ForeignKey: "owner_id", ReferenceKey: "id", Cardinality: One})
	d, ok := s.Get("user")
	require.True(t, ok)
	assert.Equal(t, "owner_id", d.ForeignKey)

	_, err := s.MustGet("post", "ghost")
	assert.ErrorIs(t, err, ErrUnknownLink)
	assert.EqualError(t, err, "post.ghost: unknown link")
}

func TestDescriptor_String(t *testing.T) {
	d := Descriptor{TargetTable: "users", ForeignKey: "user_id", ReferenceKey: "id", Cardinality: One}
	assert.Equal(t, "one(user_id -> users.id)", d.String())
}

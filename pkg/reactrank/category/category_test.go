package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/reactrank/pkg/reactrank/internalerr"
)

func TestNewScheme(t *testing.T) {
	s, err := NewScheme([]string{"down", " up "})
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "up", s.Name(1), "names are trimmed")
	c, ok := s.Lookup("down")
	assert.True(t, ok)
	assert.Equal(t, Category(0), c)
}

func TestNewSchemeRejectsBadNames(t *testing.T) {
	cases := map[string][]string{
		"empty":      nil,
		"blank":      {"a", " "},
		"duplicate":  {"a", "b", "a"},
		"unassigned": {"a", UnassignedName},
	}
	for name, names := range cases {
		_, err := NewScheme(names)
		assert.ErrorIs(t, err, internalerr.ErrInvalidInput, name)
	}
}

func TestSchemeUnassigned(t *testing.T) {
	s := MustScheme(DefaultNames())

	assert.False(t, s.Valid(Unassigned))
	assert.Equal(t, UnassignedName, s.Name(Unassigned))
	c, ok := s.Lookup(UnassignedName)
	assert.True(t, ok)
	assert.Equal(t, Unassigned, c)
	assert.Equal(t, "category(42)", s.Name(42))
}

func TestSchemeParse(t *testing.T) {
	s := MustScheme(DefaultNames())

	c, err := s.Parse("fav")
	require.NoError(t, err)
	assert.Equal(t, Category(3), c)

	_, err = s.Parse("superlike")
	assert.ErrorIs(t, err, internalerr.ErrUnknownCategory)
}

func TestSchemeNamesIsACopy(t *testing.T) {
	s := MustScheme([]string{"a", "b"})
	names := s.Names()
	names[0] = "z"

	assert.Equal(t, "a", s.Name(0))
	assert.Equal(t, []Category{0, 1}, s.All())
}

func TestMustSchemePanics(t *testing.T) {
	assert.Panics(t, func() { MustScheme([]string{"a", "a"}) })
}

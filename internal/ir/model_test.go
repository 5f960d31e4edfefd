package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookmarkEntity() *EntityDescriptor {
	return &EntityDescriptor{
		Name: "Bookmark",
		Attributes: []AttributeDescriptor{
			{Name: "url", Type: KindString},
			{Name: "title", Type: KindString, Optional: true},
			{Name: "visits", Type: KindInt, Optional: true},
		},
	}
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(bookmarkEntity(), &EntityDescriptor{Name: "Favorite"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bookmark", "Favorite"}, m.EntityNames())
	e, ok := m.Entity("Bookmark")
	require.True(t, ok)
	assert.Equal(t, "title", e.Attributes[0].Name, "attributes are sorted by name")
	assert.Len(t, m.Hash(), 64)

	_, ok = m.Entity("Missing")
	assert.False(t, ok)
}

func TestNewModelRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		entities []*EntityDescriptor
		errMsg   string
	}{
		{"duplicate entity", []*EntityDescriptor{{Name: "A"}, {Name: "A"}}, "duplicate entity"},
		{"bad entity name", []*EntityDescriptor{{Name: "a-b"}}, "invalid entity name"},
		{"reserved attribute", []*EntityDescriptor{{Name: "A", Attributes: []AttributeDescriptor{{Name: "id", Type: KindString}}}}, "reserved"},
		{"duplicate attribute", []*EntityDescriptor{{Name: "A", Attributes: []AttributeDescriptor{{Name: "x", Type: KindInt}, {Name: "x", Type: KindString}}}}, "duplicate attribute"},
		{"missing type", []*EntityDescriptor{{Name: "A", Attributes: []AttributeDescriptor{{Name: "x"}}}}, "missing type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(tt.entities...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestModelHashStable(t *testing.T) {
	a := MustModel(bookmarkEntity(), &EntityDescriptor{Name: "Favorite"})
	b := MustModel(&EntityDescriptor{Name: "Favorite"}, bookmarkEntity())
	assert.Equal(t, a.Hash(), b.Hash(), "declaration order must not change the hash")

	changed := bookmarkEntity()
	changed.Attributes[0].Type = KindInt
	c := MustModel(changed, &EntityDescriptor{Name: "Favorite"})
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestEntityCheck(t *testing.T) {
	e := bookmarkEntity()

	assert.NoError(t, e.Check(Object{"url": String("https://example.com")}))
	assert.NoError(t, e.Check(Object{"url": String("u"), "visits": Int(3)}))

	err := e.Check(Object{"title": String("no url")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required attribute missing")

	err = e.Check(Object{"url": Int(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected string, got int")

	err = e.Check(Object{"url": String("u"), "color": String("red")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown attribute")
}

func TestEntityJSONRoundTrip(t *testing.T) {
	m := MustModel(bookmarkEntity())
	e, _ := m.Entity("Bookmark")

	data, err := EntityJSON(e)
	require.NoError(t, err)

	parsed, err := ParseEntityJSON(data)
	require.NoError(t, err)
	assert.Equal(t, e, parsed)

	h1, err := EntityHash(e)
	require.NoError(t, err)
	h2, err := EntityHash(parsed)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

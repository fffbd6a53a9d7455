package primeset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAlgebra(t *testing.T) {

	a := New(0, 1, 2, 5)
	b := New(2, 3, 5, 7)

	t.Run("New/Deduplicates", func(t *testing.T) {
		require.True(t, New(3, 1, 3, 1, 2).Equal(New(1, 2, 3)))
	})

	t.Run("Union", func(t *testing.T) {
		require.True(t, a.Union(b).Equal(New(0, 1, 2, 3, 5, 7)))
		require.True(t, a.Union(Set{}).Equal(a))
	})

	t.Run("Intersect", func(t *testing.T) {
		require.True(t, a.Intersect(b).Equal(New(2, 5)))
		require.True(t, a.Intersect(Set{}).Empty())
	})

	t.Run("Diff", func(t *testing.T) {
		require.True(t, a.Diff(b).Equal(New(0, 1)))
		require.True(t, b.Diff(a).Equal(New(3, 7)))
		require.True(t, a.Diff(a).Empty())
	})

	t.Run("Contains", func(t *testing.T) {
		require.True(t, a.Contains(5))
		require.False(t, a.Contains(3))
		require.True(t, a.ContainsSet(New(0, 2)))
		require.False(t, a.ContainsSet(New(0, 3)))
		require.True(t, a.ContainsSet(Set{}))
	})

	t.Run("Disjoint", func(t *testing.T) {
		require.False(t, a.Disjoint(b))
		require.True(t, a.Disjoint(New(3, 4, 6)))
		require.True(t, a.Disjoint(Set{}))
	})

	t.Run("FirstLastCard", func(t *testing.T) {
		require.Equal(t, 0, a.First())
		require.Equal(t, 5, a.Last())
		require.Equal(t, 4, a.Card())
	})

	t.Run("Interval", func(t *testing.T) {
		require.True(t, Interval(2, 6).Equal(New(2, 3, 4, 5)))
		require.True(t, Interval(2, 6).IsInterval())
		require.False(t, a.IsInterval())
		require.True(t, Set{}.IsInterval())
	})

	t.Run("InsertRemove", func(t *testing.T) {
		require.True(t, a.Insert(3).Equal(New(0, 1, 2, 3, 5)))
		require.True(t, a.Remove(5).Equal(New(0, 1, 2)))
		require.True(t, a.Remove(4).Equal(a))
	})
}

func TestSetSerialization(t *testing.T) {

	a := New(0, 1, 2, 5, 9)

	t.Run("Binary", func(t *testing.T) {
		p, err := a.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, a.BinarySize(), len(p))

		var b Set
		require.NoError(t, b.UnmarshalBinary(p))
		require.True(t, a.Equal(b))
	})

	t.Run("JSON", func(t *testing.T) {
		p, err := json.Marshal(a)
		require.NoError(t, err)
		require.Equal(t, "[0,1,2,5,9]", string(p))

		var b Set
		require.NoError(t, json.Unmarshal(p, &b))
		require.True(t, a.Equal(b))
	})

	t.Run("JSON/Empty", func(t *testing.T) {
		p, err := json.Marshal(Set{})
		require.NoError(t, err)
		require.Equal(t, "[]", string(p))

		var b Set
		require.NoError(t, json.Unmarshal(p, &b))
		require.True(t, b.Empty())
	})
}

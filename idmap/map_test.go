package idmap

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nodeID uint64

func TestMap_AutoIncrement(t *testing.T) {
	m := New[string]()

	id1 := m.Insert("hello")
	id2 := m.Insert("world")
	id3 := m.Insert("go")

	assert.Equal(t, DefaultID(1), id1)
	assert.Equal(t, DefaultID(2), id2)
	assert.Equal(t, DefaultID(3), id3)

	v, ok := m.Get(id1)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.Equal(t, "world", m.MustGet(id2))
	assert.Equal(t, DefaultID(3), m.MaxID())

	// Removal does not move the counter back.
	_, ok = m.Remove(id2)
	require.True(t, ok)
	assert.Equal(t, DefaultID(3), m.MaxID())
	assert.Equal(t, DefaultID(4), m.Insert("new value"))

	assert.Equal(t, 3, m.Len())
	m.Clear()
	assert.True(t, m.IsEmpty())
}

func TestMap_NoReuseAfterRemove(t *testing.T) {
	m := New[int]()
	id := m.Insert(1)
	m.Remove(id)

	next := m.Insert(2)
	assert.NotEqual(t, id, next)
	assert.Greater(t, next, id)
}

func TestMap_ClearKeepsCounter(t *testing.T) {
	m := New[int]()
	for i := range 5 {
		m.Insert(i)
	}
	m.Clear()

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, DefaultID(5), m.MaxID())
	assert.Equal(t, DefaultID(6), m.Insert(42))
}

func TestMap_InsertWithID(t *testing.T) {
	t.Run("BelowCounter", func(t *testing.T) {
		m := New[string]()
		m.Insert("a")
		m.Insert("b")
		m.Insert("c")

		old, replaced := m.InsertWithID(2, "B")
		assert.True(t, replaced)
		assert.Equal(t, "b", old)
		assert.Equal(t, DefaultID(3), m.MaxID())
		assert.Equal(t, DefaultID(4), m.Insert("d"))
	})

	t.Run("AboveCounter", func(t *testing.T) {
		m := New[string]()
		m.Insert("a")

		_, replaced := m.InsertWithID(100, "far")
		assert.False(t, replaced)
		assert.Equal(t, DefaultID(100), m.MaxID())
		assert.Equal(t, DefaultID(101), m.Insert("next"))
	})

	t.Run("GapIsNeverFilled", func(t *testing.T) {
		m := New[string]()
		m.InsertWithID(10, "x")
		m.Remove(10)
		assert.Equal(t, DefaultID(11), m.Insert("y"))
		assert.False(t, m.ContainsID(5))
	})
}

func TestMap_InsertCyclic(t *testing.T) {
	type node struct {
		self  nodeID
		child nodeID
	}

	m := NewWithID[nodeID, node]()
	m.Insert(node{})

	var inner nodeID
	outer := m.InsertCyclic(func(self nodeID) node {
		// Nested inserts see the reserved counter.
		inner = m.InsertCyclic(func(child nodeID) node {
			return node{self: child}
		})
		return node{self: self, child: inner}
	})

	assert.Equal(t, nodeID(2), outer)
	assert.Equal(t, nodeID(3), inner)
	assert.Equal(t, nodeID(3), m.MaxID())

	got := m.MustGet(outer)
	assert.Equal(t, outer, got.self)
	assert.Equal(t, inner, got.child)
	assert.Equal(t, inner, m.MustGet(inner).self)
}

func TestMap_InsertCyclicOverwritesDirectWrite(t *testing.T) {
	m := New[string]()
	id := m.InsertCyclic(func(self DefaultID) string {
		m.InsertWithID(self, "from closure")
		return "returned"
	})
	assert.Equal(t, "returned", m.MustGet(id))
	assert.Equal(t, 1, m.Len())
}

func TestMap_Reserve(t *testing.T) {
	m := New[int]()
	id := m.Reserve()
	assert.Equal(t, DefaultID(1), id)
	assert.False(t, m.ContainsID(id))
	assert.Equal(t, DefaultID(2), m.Insert(7))
}

func TestMap_NextIDDoesNotConsume(t *testing.T) {
	m := NewWithID[nodeID, int]()
	assert.Equal(t, nodeID(1), m.NextID())
	assert.Equal(t, nodeID(1), m.NextID())

	m.InsertWithID(m.NextID(), 10)
	assert.Equal(t, nodeID(2), m.NextID())
	assert.Equal(t, nodeID(1), m.MaxID())
}

func TestMap_Exhausted(t *testing.T) {
	m := New[string]()
	m.InsertWithID(math.MaxUint64-1, "penultimate")
	assert.False(t, m.Exhausted())
	assert.Equal(t, uint64(1), m.Remaining())
	assert.Equal(t, DefaultID(math.MaxUint64), m.Insert("last"))

	assert.True(t, m.Exhausted())
	assert.Equal(t, uint64(0), m.Remaining())
	assert.True(t, IsNil(m.NextID()))

	assert.PanicsWithError(t, ErrIDExhausted.Error(), func() { m.Reserve() })
	assert.PanicsWithError(t, ErrIDExhausted.Error(), func() { m.Insert("wrapped") })
	assert.PanicsWithError(t, ErrIDExhausted.Error(), func() {
		m.InsertCyclic(func(DefaultID) string { return "wrapped" })
	})

	// Nothing was stored under a wrapped identifier.
	assert.Equal(t, 2, m.Len())
	assert.False(t, m.ContainsID(0))
	assert.Equal(t, DefaultID(math.MaxUint64), m.MaxID())
}

func TestMap_MissingLookups(t *testing.T) {
	m := New[int]()
	m.Insert(1)

	_, ok := m.Get(99)
	assert.False(t, ok)
	_, ok = m.Remove(99)
	assert.False(t, ok)
	assert.False(t, m.Update(99, func(v *int) { *v = 0 }))
	assert.False(t, m.ContainsID(99))

	assert.PanicsWithError(t, "idmap: invalid id: 99", func() {
		m.MustGet(99)
	})
}

func TestMap_Update(t *testing.T) {
	m := New[int]()
	id := m.Insert(1)
	ok := m.Update(id, func(v *int) { *v += 41 })
	require.True(t, ok)
	assert.Equal(t, 42, m.MustGet(id))
}

func TestMap_FromSlice(t *testing.T) {
	m, ids := FromSlice[nodeID]([]string{"a", "b", "c"})
	assert.Equal(t, []nodeID{1, 2, 3}, ids)
	assert.Equal(t, nodeID(3), m.MaxID())
	assert.Equal(t, "b", m.MustGet(2))
}

func TestMap_KeysAndClone(t *testing.T) {
	m := New[int]()
	m.InsertWithID(7, 70)
	m.InsertWithID(3, 30)
	m.Insert(80)

	assert.Equal(t, []DefaultID{3, 7, 8}, m.Keys())

	c := m.Clone()
	c.Remove(3)
	assert.True(t, m.ContainsID(3))
	assert.Equal(t, m.MaxID(), c.MaxID())

	seen := 0
	for range m.All() {
		seen++
	}
	assert.Equal(t, 3, seen)
}

func TestMap_ZeroValue(t *testing.T) {
	var m Map[DefaultID, string]
	assert.Equal(t, DefaultID(1), m.Insert("a"))
	assert.Equal(t, 1, m.Len())
}

func TestID_TransparentWire(t *testing.T) {
	data, err := json.Marshal(DefaultID(123456789))
	require.NoError(t, err)
	assert.Equal(t, "123456789", string(data))

	var id DefaultID
	require.NoError(t, json.Unmarshal(data, &id))
	assert.Equal(t, DefaultID(123456789), id)

	data, err = json.Marshal(nodeID(987654321))
	require.NoError(t, err)
	var n nodeID
	require.NoError(t, json.Unmarshal(data, &n))
	assert.Equal(t, nodeID(987654321), n)
}

func TestID_Conversions(t *testing.T) {
	assert.Equal(t, nodeID(5), FromUint64[nodeID](5))
	assert.Equal(t, uint64(5), ToUint64(nodeID(5)))
	assert.True(t, IsNil(Nil[nodeID]()))
	assert.False(t, IsNil(nodeID(1)))
	assert.Equal(t, "42", DefaultID(42).String())
}

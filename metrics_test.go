package objalloc

import (
	"testing"

	"github.com/hupe1980/objalloc/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicMetricsCollector(t *testing.T) {
	mc := &BasicMetricsCollector{}
	a := newEntityAllocator(t, WithMetricsCollector(mc))

	mustInsert(t, a, "a", 10)
	mustInsert(t, a, "b", 20)
	_, err := a.Insert(entity{Name: "dup", Pos: 10})
	require.Error(t, err)

	_, ok := a.Remove(2)
	require.True(t, ok)
	_, ok = a.Remove(2)
	require.False(t, ok)

	require.NoError(t, a.Modify(1, func(e *entity) { e.Pos = 15 }))
	require.Error(t, a.Modify(1, func(e *entity) { e.Pos = 500 }))

	rejected := a.Extend([]entity{{Pos: 40}, {Pos: 200}})
	require.Len(t, rejected, 1)
	ids, err := a.TryExtend([]entity{{Pos: 50}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	data, err := a.Encode(codec.JSON{})
	require.NoError(t, err)
	require.NoError(t, a.Decode(data, codec.JSON{}))

	stats := mc.GetStats()
	// Batches are counted once, never per object.
	assert.Equal(t, int64(3), stats.InsertCount)
	assert.Equal(t, int64(1), stats.InsertRejected)
	assert.Equal(t, int64(2), stats.RemoveCount)
	assert.Equal(t, int64(1), stats.RemoveMisses)
	assert.Equal(t, int64(2), stats.ModifyCount)
	assert.Equal(t, int64(1), stats.ModifyErrors)
	assert.Equal(t, int64(2), stats.BatchInsertCount)
	assert.Equal(t, int64(3), stats.BatchInsertItems)
	assert.Equal(t, int64(1), stats.BatchInsertFailed)
	assert.Equal(t, int64(1), stats.DecodeCount)
	assert.Equal(t, int64(3), stats.DecodeRecords)
	assert.Zero(t, stats.DecodeErrors)
}

func TestWithMetricsCollector_Nil(t *testing.T) {
	a := newEntityAllocator(t, WithMetricsCollector(nil))
	assert.NotPanics(t, func() { mustInsert(t, a, "a", 10) })
}

package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/hupe1980/objalloc"
	"github.com/hupe1980/objalloc/blobstore"
	"github.com/hupe1980/objalloc/codec"
	"github.com/hupe1980/objalloc/fieldindex"
	"github.com/hupe1980/objalloc/idmap"
	"github.com/hupe1980/objalloc/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type task struct {
	Title    string `json:"title"`
	Priority int64  `json:"priority"`
}

func (t *task) FieldValue() int64 { return t.Priority }
func (t *task) FieldRef() *int64  { return &t.Priority }
func (t *task) FieldMut() *int64  { return &t.Priority }

type taskAllocator = objalloc.Allocator[idmap.DefaultID, task, int64, *task]

func newTasks(t *testing.T, priorities ...int64) *taskAllocator {
	t.Helper()
	a, err := objalloc.New[idmap.DefaultID, task, int64](fieldindex.NewSpan[int64](-1000, 1000), 50)
	require.NoError(t, err)
	for _, p := range priorities {
		_, err := a.Insert(task{Title: fmt.Sprintf("task-%d", p), Priority: p})
		require.NoError(t, err)
	}
	return a
}

func assertSameTasks(t *testing.T, want, got *taskAllocator) {
	t.Helper()
	require.Equal(t, want.Len(), got.Len())
	for _, id := range want.IDs() {
		w, _ := want.GetWithID(id)
		g, ok := got.GetWithID(id)
		require.True(t, ok, "id %d", id)
		assert.Equal(t, w, g)
	}
	assert.Equal(t, want.MaxID(), got.MaxID())
	require.NoError(t, got.Validate())
}

// renamedJSON is the stdlib codec under a name ByName does not know.
type renamedJSON struct{ codec.JSON }

func (renamedJSON) Name() string { return "renamed-json" }

func TestManager_SaveLoad(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := context.Background()
			m := NewManager(blobstore.NewMemoryStore(), WithCompression(c))

			src := newTasks(t, -900, -3, 0, 7, 512, 999)
			info, err := m.Save(ctx, "tasks", src)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), info.Version)
			assert.Equal(t, "tasks/SNAP-00000000000000000001.oalc", info.Blob)
			assert.Equal(t, c, info.Compression)
			assert.Equal(t, codec.Default.Name(), info.Codec)

			var dst taskAllocator
			loaded, err := m.Load(ctx, "tasks", &dst)
			require.NoError(t, err)
			assert.Equal(t, info, loaded)
			assertSameTasks(t, src, &dst)
		})
	}
}

func TestManager_VersionsAdvance(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	a := newTasks(t, 1)
	for i := 1; i <= 3; i++ {
		info, err := m.Save(ctx, "tasks", a)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), info.Version)
		_, err = a.Insert(task{Title: "more", Priority: int64(100 + i)})
		require.NoError(t, err)
	}

	versions, err := m.Versions(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, versions)

	// The latest frame holds the state at the third save.
	var dst taskAllocator
	info, err := m.Load(ctx, "tasks", &dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.Version)
	assert.Equal(t, 3, dst.Len())
}

func TestManager_KeepVersions(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store, WithKeepVersions(2))

	a := newTasks(t, 1, 2)
	for range 4 {
		_, err := m.Save(ctx, "tasks", a)
		require.NoError(t, err)
	}

	versions, err := m.Versions(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4}, versions)

	var dst taskAllocator
	_, err = m.Load(ctx, "tasks", &dst)
	require.NoError(t, err)
	assertSameTasks(t, a, &dst)
}

func TestManager_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store)

	for _, name := range []string{"queue", "backlog", "archive"} {
		_, err := m.Save(ctx, name, newTasks(t, 1))
		require.NoError(t, err)
	}
	require.NoError(t, store.Put(ctx, "unrelated.txt", []byte("x")))

	names, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "backlog", "queue"}, names)

	require.NoError(t, m.Delete(ctx, "backlog"))

	names, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "queue"}, names)

	var dst taskAllocator
	_, err = m.Load(ctx, "backlog", &dst)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	// Deleting a missing snapshot is not an error.
	require.NoError(t, m.Delete(ctx, "backlog"))
}

func TestManager_LoadMissing(t *testing.T) {
	m := NewManager(blobstore.NewMemoryStore())

	var dst taskAllocator
	_, err := m.Load(context.Background(), "nothing", &dst)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestManager_InvalidNames(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())
	a := newTasks(t)

	for _, name := range []string{"", ".", "..", "a/b", `a\b`, CurrentName} {
		_, err := m.Save(ctx, name, a)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
		_, err = m.Load(ctx, name, a)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
		assert.ErrorIs(t, m.Delete(ctx, name), ErrInvalidName, "name %q", name)
	}
}

func TestManager_CorruptFrame(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store, WithCompression(CompressionZSTD))

	info, err := m.Save(ctx, "tasks", newTasks(t, 1, 2, 3))
	require.NoError(t, err)

	data, err := blobstore.ReadAll(ctx, store, info.Blob)
	require.NoError(t, err)
	data[len(data)-1] ^= 0x01
	require.NoError(t, store.Put(ctx, info.Blob, data))

	var dst taskAllocator
	_, err = m.Load(ctx, "tasks", &dst)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, store.Put(ctx, info.Blob, data[:10]))
	_, err = m.Load(ctx, "tasks", &dst)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestManager_CorruptPointer(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store)

	_, err := m.Save(ctx, "tasks", newTasks(t, 1))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "tasks/CURRENT", []byte("other/SNAP-00000000000000000001.oalc")))

	var dst taskAllocator
	_, err = m.Load(ctx, "tasks", &dst)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestManager_CodecSelection(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	writer := NewManager(store, WithCodec(renamedJSON{}))
	_, err := writer.Save(ctx, "tasks", newTasks(t, 4))
	require.NoError(t, err)

	var dst taskAllocator
	_, err = NewManager(store).Load(ctx, "tasks", &dst)
	assert.ErrorIs(t, err, ErrIncompatibleFormat)

	info, err := writer.Load(ctx, "tasks", &dst)
	require.NoError(t, err)
	assert.Equal(t, "renamed-json", info.Codec)
	assert.Equal(t, 1, dst.Len())

	// A reader with a different default codec resolves built-in names.
	_, err = NewManager(store, WithCodec(codec.JSON{})).Save(ctx, "plain", newTasks(t, 5))
	require.NoError(t, err)
	_, err = NewManager(store).Load(ctx, "plain", &dst)
	require.NoError(t, err)
}

func TestManager_DecodeFailure(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store)

	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, CompressionNone, codec.Default.Name(),
		[]byte(`{"span":{"start":0,"end":10},"unit":1,"elements":[{"id":0,"object":{"priority":1}}]}`)))
	require.NoError(t, store.Put(ctx, "bad/SNAP-00000000000000000001.oalc", buf.Bytes()))
	require.NoError(t, store.Put(ctx, "bad/CURRENT", []byte("bad/SNAP-00000000000000000001.oalc")))

	dst := newTasks(t, 3)
	_, err := m.Load(ctx, "bad", dst)
	var derr *objalloc.DeserializeError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, objalloc.StageRestore, derr.Stage)

	// The target keeps its previous state.
	assert.Equal(t, 1, dst.Len())
}

func TestManager_SaveAllLoadAll(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MaxConcurrency: 2})
	m := NewManager(blobstore.NewMemoryStore(), WithController(rc), WithCompression(CompressionLZ4))

	sources := map[string]*taskAllocator{
		"a": newTasks(t, 1, 2),
		"b": newTasks(t, -10),
		"c": newTasks(t),
		"d": newTasks(t, 100, 200, 300),
	}
	encs := make(map[string]Encoder, len(sources))
	for name, a := range sources {
		encs[name] = a
	}
	require.NoError(t, m.SaveAll(ctx, encs))

	targets := make(map[string]*taskAllocator, len(sources))
	decs := make(map[string]Decoder, len(sources))
	for name := range sources {
		targets[name] = new(taskAllocator)
		decs[name] = targets[name]
	}
	require.NoError(t, m.LoadAll(ctx, decs))

	for name, src := range sources {
		assertSameTasks(t, src, targets[name])
	}
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestManager_LoadAllStopsOnFailure(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	_, err := m.Save(ctx, "present", newTasks(t, 1))
	require.NoError(t, err)

	err = m.LoadAll(ctx, map[string]Decoder{
		"present": new(taskAllocator),
		"missing": new(taskAllocator),
	})
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestManager_MemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 16})
	m := NewManager(blobstore.NewMemoryStore(), WithController(rc))

	_, err := m.Save(context.Background(), "tasks", newTasks(t, 1, 2, 3))
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestManager_IOLimit(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore(), WithIOLimit(1<<20))
	assert.Equal(t, int64(1<<20), m.Options().Controller.Config().IOLimitBytesPerSec)

	src := newTasks(t, 1, 2, 3)
	_, err := m.Save(ctx, "tasks", src)
	require.NoError(t, err)

	var dst taskAllocator
	_, err = m.Load(ctx, "tasks", &dst)
	require.NoError(t, err)
	assertSameTasks(t, src, &dst)
}

func TestManager_LocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src := newTasks(t, -1, 1)
	_, err := NewManager(blobstore.NewLocalStore(dir), WithCompression(CompressionZSTD)).Save(ctx, "tasks", src)
	require.NoError(t, err)

	// A fresh manager over the same directory sees the snapshot.
	m := NewManager(blobstore.NewLocalStore(dir))
	names, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks"}, names)

	var dst taskAllocator
	_, err = m.Load(ctx, "tasks", &dst)
	require.NoError(t, err)
	assertSameTasks(t, src, &dst)
}

func TestManager_Logging(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))
	m := NewManager(blobstore.NewMemoryStore(), WithLogger(logger), WithCompression(CompressionLZ4))

	_, err := m.Save(context.Background(), "tasks", newTasks(t, 1))
	require.NoError(t, err)

	assert.Contains(t, out.String(), `"msg":"snapshot saved"`)
	assert.Contains(t, out.String(), `"name":"tasks"`)
	assert.Contains(t, out.String(), `"compression":"lz4"`)
}

package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/objalloc/blobstore"
	"github.com/hupe1980/objalloc/codec"
	"github.com/hupe1980/objalloc/internal/compress"
	"github.com/hupe1980/objalloc/resource"
	"golang.org/x/sync/errgroup"
)

const (
	// CurrentName is the base name of the pointer blob that names the
	// latest frame of a snapshot.
	CurrentName = "CURRENT"

	framePrefix = "SNAP-"
	frameExt    = ".oalc"
)

// Encoder produces a snapshot payload. *objalloc.Allocator implements it.
type Encoder interface {
	Encode(c codec.Codec) ([]byte, error)
}

// Decoder consumes a snapshot payload. *objalloc.Allocator implements it.
type Decoder interface {
	Decode(data []byte, c codec.Codec) error
}

// Info describes a stored frame.
type Info struct {
	Name        string
	Version     uint64
	Blob        string
	Size        int64
	Compression Compression
	Codec       string
}

// Manager saves and loads named snapshots in a blob store.
//
// Layout per snapshot name:
//
//	<name>/SNAP-<version>.oalc  one frame per save, version zero-padded to 20 digits
//	<name>/CURRENT              blob name of the latest frame
//
// A frame is written in full before CURRENT moves to it, so a reader never
// observes a partial snapshot. Saves of the same name through one Manager
// are serialized.
type Manager struct {
	store blobstore.Store
	opts  Options
	locks sync.Map // name -> *sync.Mutex
}

// NewManager creates a Manager on store.
func NewManager(store blobstore.Store, opts ...Option) *Manager {
	return &Manager{
		store: store,
		opts:  applyOptions(opts),
	}
}

// Options returns the effective options.
func (m *Manager) Options() Options {
	return m.opts
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || name == CurrentName {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (m *Manager) lock(name string) func() {
	mu, _ := m.locks.LoadOrStore(name, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

func blobName(name string, version uint64) string {
	return fmt.Sprintf("%s/%s%020d%s", name, framePrefix, version, frameExt)
}

func currentName(name string) string {
	return name + "/" + CurrentName
}

// parseBlobName splits "<name>/SNAP-<version>.oalc".
func parseBlobName(blob string) (string, uint64, bool) {
	dir, base := path.Split(blob)
	if dir == "" || !strings.HasPrefix(base, framePrefix) || !strings.HasSuffix(base, frameExt) {
		return "", 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(base, framePrefix), frameExt), 10, 64)
	if err != nil || v == 0 {
		return "", 0, false
	}
	return strings.TrimSuffix(dir, "/"), v, true
}

// Versions returns the stored frame versions of name in ascending order.
func (m *Manager) Versions(ctx context.Context, name string) ([]uint64, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return m.versions(ctx, name)
}

func (m *Manager) versions(ctx context.Context, name string) ([]uint64, error) {
	blobs, err := m.store.List(ctx, name+"/")
	if err != nil {
		return nil, err
	}
	var versions []uint64
	for _, b := range blobs {
		if n, v, ok := parseBlobName(b); ok && n == name {
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// Save encodes enc and stores it as the next version of name.
func (m *Manager) Save(ctx context.Context, name string, enc Encoder) (Info, error) {
	if err := validateName(name); err != nil {
		return Info{}, err
	}
	unlock := m.lock(name)
	defer unlock()

	rc := m.opts.Controller
	if err := rc.Acquire(ctx); err != nil {
		return Info{}, err
	}
	defer rc.Release()

	payload, err := enc.Encode(m.opts.Codec)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: encode %s: %w", name, err)
	}
	stored, err := compress.Compress(payload, m.opts.Compression)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: compress %s: %w", name, err)
	}

	size := int64(header{Codec: m.opts.Codec.Name()}.size() + len(stored))
	if err := rc.AcquireMemory(ctx, size); err != nil {
		return Info{}, err
	}
	defer rc.ReleaseMemory(size)

	versions, err := m.versions(ctx, name)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: list %s: %w", name, err)
	}
	version := uint64(1)
	if len(versions) > 0 {
		version = versions[len(versions)-1] + 1
	}
	blob := blobName(name, version)

	var buf bytes.Buffer
	buf.Grow(int(size))
	if err := writeFrame(resource.NewRateLimitedWriter(ctx, &buf, rc), m.opts.Compression, m.opts.Codec.Name(), stored); err != nil {
		return Info{}, fmt.Errorf("snapshot: write frame %s: %w", blob, err)
	}
	if err := m.store.Put(ctx, blob, buf.Bytes()); err != nil {
		return Info{}, fmt.Errorf("snapshot: put %s: %w", blob, err)
	}
	if err := m.store.Put(ctx, currentName(name), []byte(blob)); err != nil {
		return Info{}, fmt.Errorf("snapshot: update %s: %w", currentName(name), err)
	}

	info := Info{
		Name:        name,
		Version:     version,
		Blob:        blob,
		Size:        size,
		Compression: m.opts.Compression,
		Codec:       m.opts.Codec.Name(),
	}
	m.opts.Logger.Info("snapshot saved",
		"name", name,
		"version", version,
		"bytes", size,
		"raw_bytes", len(payload),
		"compression", m.opts.Compression.String(),
		"codec", info.Codec,
	)

	if m.opts.KeepVersions > 0 {
		m.prune(ctx, name, append(versions, version))
	}
	return info, nil
}

// prune deletes all but the newest KeepVersions frames. Failures are logged;
// the save already succeeded.
func (m *Manager) prune(ctx context.Context, name string, versions []uint64) {
	if len(versions) <= m.opts.KeepVersions {
		return
	}
	for _, v := range versions[:len(versions)-m.opts.KeepVersions] {
		blob := blobName(name, v)
		if err := m.store.Delete(ctx, blob); err != nil {
			m.opts.Logger.Warn("snapshot prune failed", "name", name, "blob", blob, "error", err)
			continue
		}
		m.opts.Logger.Debug("snapshot pruned", "name", name, "version", v)
	}
}

// Load reads the latest frame of name and hands its payload to dec. A
// missing snapshot reports blobstore.ErrNotFound.
func (m *Manager) Load(ctx context.Context, name string, dec Decoder) (Info, error) {
	if err := validateName(name); err != nil {
		return Info{}, err
	}

	rc := m.opts.Controller
	if err := rc.Acquire(ctx); err != nil {
		return Info{}, err
	}
	defer rc.Release()

	target, err := blobstore.ReadAll(ctx, m.store, currentName(name))
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: %s: %w", name, err)
	}
	blob := string(target)
	if n, _, ok := parseBlobName(blob); !ok || n != name {
		return Info{}, fmt.Errorf("%w: %s points at %q", ErrCorrupt, currentName(name), blob)
	}

	info, payload, err := m.read(ctx, blob)
	if err != nil {
		return Info{}, err
	}
	info.Name = name

	c, err := m.codecFor(info.Codec)
	if err != nil {
		return Info{}, err
	}
	if err := dec.Decode(payload, c); err != nil {
		return Info{}, fmt.Errorf("snapshot: decode %s: %w", blob, err)
	}

	m.opts.Logger.Info("snapshot loaded",
		"name", name,
		"version", info.Version,
		"bytes", info.Size,
		"compression", info.Compression.String(),
		"codec", info.Codec,
	)
	return info, nil
}

// read fetches, verifies and decompresses one frame.
func (m *Manager) read(ctx context.Context, blob string) (Info, []byte, error) {
	rc := m.opts.Controller

	b, err := m.store.Open(ctx, blob)
	if err != nil {
		return Info{}, nil, fmt.Errorf("snapshot: open %s: %w", blob, err)
	}
	defer func() { _ = b.Close() }()

	size := b.Size()
	if size < prefixSize+suffixSize {
		return Info{}, nil, fmt.Errorf("%w: %s is %d bytes", ErrCorrupt, blob, size)
	}
	if err := rc.AcquireMemory(ctx, size); err != nil {
		return Info{}, nil, err
	}
	defer rc.ReleaseMemory(size)

	body, err := b.ReadRange(ctx, 0, size)
	if err != nil {
		return Info{}, nil, fmt.Errorf("snapshot: read %s: %w", blob, err)
	}
	defer func() { _ = body.Close() }()

	h, stored, err := readFrame(resource.NewRateLimitedReader(ctx, body, rc), size)
	if err != nil {
		return Info{}, nil, fmt.Errorf("snapshot: %s: %w", blob, err)
	}
	payload, err := compress.Decompress(stored, h.Compression)
	if err != nil {
		if errors.Is(err, compress.ErrCorrupt) {
			return Info{}, nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, blob, err)
		}
		return Info{}, nil, fmt.Errorf("snapshot: %s: %w", blob, err)
	}

	_, version, _ := parseBlobName(blob)
	return Info{
		Version:     version,
		Blob:        blob,
		Size:        size,
		Compression: h.Compression,
		Codec:       h.Codec,
	}, payload, nil
}

func (m *Manager) codecFor(name string) (codec.Codec, error) {
	if m.opts.Codec.Name() == name {
		return m.opts.Codec, nil
	}
	if c, ok := codec.ByName(name); ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: unknown codec %q", ErrIncompatibleFormat, name)
}

// SaveAll saves every entry of encs concurrently, bounded by the
// controller's concurrency. The first failure cancels the remaining saves.
func (m *Manager) SaveAll(ctx context.Context, encs map[string]Encoder) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Controller.Concurrency())

	for _, name := range slices.Sorted(maps.Keys(encs)) {
		enc := encs[name]
		g.Go(func() error {
			_, err := m.Save(gctx, name, enc)
			return err
		})
	}
	return g.Wait()
}

// LoadAll loads every entry of decs concurrently, bounded by the
// controller's concurrency. The first failure cancels the remaining loads.
func (m *Manager) LoadAll(ctx context.Context, decs map[string]Decoder) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Controller.Concurrency())

	for _, name := range slices.Sorted(maps.Keys(decs)) {
		dec := decs[name]
		g.Go(func() error {
			_, err := m.Load(gctx, name, dec)
			return err
		})
	}
	return g.Wait()
}

// List returns the names of all snapshots with at least one frame, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	blobs, err := m.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, b := range blobs {
		if name, _, ok := parseBlobName(b); ok && validateName(name) == nil {
			seen[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Delete removes the snapshot: its CURRENT pointer first, then every frame.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	unlock := m.lock(name)
	defer unlock()

	if err := m.store.Delete(ctx, currentName(name)); err != nil {
		return fmt.Errorf("snapshot: delete %s: %w", currentName(name), err)
	}
	blobs, err := m.store.List(ctx, name+"/")
	if err != nil {
		return err
	}
	for _, b := range blobs {
		if err := m.store.Delete(ctx, b); err != nil {
			return fmt.Errorf("snapshot: delete %s: %w", b, err)
		}
	}
	m.opts.Logger.Info("snapshot deleted", "name", name, "blobs", len(blobs))
	return nil
}

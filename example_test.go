package objalloc_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hupe1980/objalloc"
	"github.com/hupe1980/objalloc/blobstore"
	"github.com/hupe1980/objalloc/codec"
	"github.com/hupe1980/objalloc/fieldindex"
	"github.com/hupe1980/objalloc/idmap"
	"github.com/hupe1980/objalloc/snapshot"
)

type SpriteID uint64

type Sprite struct {
	Name string `json:"name"`
	Z    int32  `json:"z"`
}

func (s *Sprite) FieldValue() int32 { return s.Z }
func (s *Sprite) FieldRef() *int32  { return &s.Z }
func (s *Sprite) FieldMut() *int32  { return &s.Z }

// Example demonstrates inserting, looking up and relocating objects.
func Example() {
	a, err := objalloc.New[SpriteID, Sprite, int32](fieldindex.NewSpan[int32](0, 100), 10)
	if err != nil {
		log.Fatal(err)
	}

	hero, _ := a.Insert(Sprite{Name: "hero", Z: 20})
	tree, _ := a.Insert(Sprite{Name: "tree", Z: 5})

	if err := a.Modify(hero, func(s *Sprite) { s.Z = 50 }); err != nil {
		log.Fatal(err)
	}

	for rec := range a.All() {
		fmt.Println(rec.ID, rec.Object.Name, rec.Object.Z)
	}

	rec, _ := a.GetWithValue(5)
	fmt.Println(rec.ID == tree)
	// Output:
	// 2 tree 5
	// 1 hero 50
	// true
}

// Example_rejection demonstrates recovering a rejected object.
func Example_rejection() {
	a, _ := objalloc.New[idmap.DefaultID, Sprite, int32](fieldindex.NewSpan[int32](0, 100), 10)
	_, _ = a.Insert(Sprite{Name: "hero", Z: 20})

	_, err := a.Insert(Sprite{Name: "clone", Z: 20})

	var ierr *objalloc.InsertError[Sprite, int32]
	if errors.As(err, &ierr) && errors.Is(err, objalloc.ErrAlreadyExist) {
		fmt.Println("rejected:", ierr.Object.Name)
	}
	fmt.Println("next id:", a.MaxID()+1)
	// Output:
	// rejected: clone
	// next id: 2
}

type Node struct {
	Self   uint64 `json:"self"`
	Parent uint64 `json:"parent"`
	Depth  uint16 `json:"depth"`
}

func (n *Node) FieldValue() uint16 { return n.Depth }
func (n *Node) FieldRef() *uint16  { return &n.Depth }
func (n *Node) FieldMut() *uint16  { return &n.Depth }

// Example_insertCyclic demonstrates an object that stores its own identifier.
func Example_insertCyclic() {
	a, _ := objalloc.New[idmap.DefaultID, Node, uint16](fieldindex.NewSpan[uint16](0, 64), 8)

	root, _ := a.InsertCyclic(func(id idmap.DefaultID) Node {
		return Node{Self: uint64(id), Depth: 0}
	})
	child, _ := a.InsertCyclic(func(id idmap.DefaultID) Node {
		return Node{Self: uint64(id), Parent: uint64(root), Depth: 1}
	})

	n, _ := a.GetWithID(child)
	fmt.Println(n.Self, n.Parent)
	// Output: 2 1
}

// Example_snapshot demonstrates persisting an allocator and restoring it.
func Example_snapshot() {
	ctx := context.Background()

	a, _ := objalloc.New[SpriteID, Sprite, int32](fieldindex.NewSpan[int32](0, 100), 10)
	_, _ = a.Insert(Sprite{Name: "hero", Z: 20})
	_, _ = a.Insert(Sprite{Name: "tree", Z: 5})

	m := snapshot.NewManager(blobstore.NewMemoryStore(),
		snapshot.WithCompression(snapshot.CompressionZSTD),
		snapshot.WithCodec(codec.JSON{}),
	)
	info, err := m.Save(ctx, "sprites", a)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(info.Blob)

	var restored objalloc.Allocator[SpriteID, Sprite, int32, *Sprite]
	if _, err := m.Load(ctx, "sprites", &restored); err != nil {
		log.Fatal(err)
	}
	s, _ := restored.GetWithID(1)
	fmt.Println(restored.Len(), s.Name)
	// Output:
	// sprites/SNAP-00000000000000000001.oalc
	// 2 hero
}

package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/annel0/voxelcore/internal/world/terrain"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedEditor(t *testing.T, opts EditorOptions) (*Editor, *ChunkStore, *terrain.Generator, *block.Catalog) {
	t.Helper()
	s, gen, catalog := newTestStore(t, StoreOptions{})
	s.UpdateLoadedChunks(origin)
	s.LoadAll(context.Background())
	if opts.Catalog == nil {
		opts.Catalog = catalog
	}
	opts.Logger = quietLogger()
	return NewEditor(s, opts), s, gen, catalog
}

func TestReadBlock(t *testing.T) {
	e, _, gen, _ := loadedEditor(t, EditorOptions{})

	pos := vec.Vec3{X: -3, Y: 7, Z: 12}
	cell, ok := e.ReadBlock(pos)
	require.True(t, ok)
	assert.True(t, cell.SameType(gen.CellAt(pos)))

	_, ok = e.ReadBlock(vec.Vec3{X: 100, Y: 0, Z: 0})
	assert.False(t, ok, "чанк не в памяти")
}

func TestApplyEditsLengthMismatch(t *testing.T) {
	e, _, _, catalog := loadedEditor(t, EditorOptions{})

	_, err := e.ApplyEdits([]vec.Vec3{{}, {X: 1}}, []block.Cell{cellOf(t, catalog, "Stone")})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = e.ApplyNamedEdits([]vec.Vec3{{}}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestApplyEditsNoop(t *testing.T) {
	e, s, gen, _ := loadedEditor(t, EditorOptions{})

	pos := vec.Vec3{X: 2, Y: 4, Z: 2}
	c, _ := s.ResolveChunk(pos)
	before := c.Geometry()

	changed, err := e.ApplyEdits([]vec.Vec3{pos}, []block.Cell{gen.CellAt(pos)})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, c.Modified())
	assert.Same(t, before, c.Geometry(), "без изменений геометрия не перестраивается")
}

func TestApplyEditsOutsideResidentChunks(t *testing.T) {
	e, _, _, catalog := loadedEditor(t, EditorOptions{})

	changed, err := e.ApplyEdits([]vec.Vec3{{X: 500, Y: 40, Z: 0}}, []block.Cell{cellOf(t, catalog, "Glass")})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestEditPropagatesToNeighbourChunk(t *testing.T) {
	e, s, _, _ := loadedEditor(t, EditorOptions{})

	geometry := map[vec.Vec3]*Geometry{}
	for _, coord := range s.Resident() {
		c, _ := s.Chunk(coord)
		geometry[coord] = c.Geometry()
	}

	neighbour, _ := s.Chunk(vec.Vec3{X: -16})
	plusX := mesh.Right.Direction()
	require.False(t, hasQuad(&neighbour.Geometry().Opaque, plusX, mgl32.Vec3{15.5, 5, 5}))

	pos := vec.Vec3{X: 0, Y: 5, Z: 5}
	changed, err := e.ApplyEdits([]vec.Vec3{pos}, []block.Cell{block.Empty})
	require.NoError(t, err)
	require.True(t, changed)

	cell, ok := e.ReadBlock(pos)
	require.True(t, ok)
	assert.True(t, cell.IsEmpty())

	rebuilt := map[vec.Vec3]bool{{}: true, {X: -16}: true}
	for coord, before := range geometry {
		c, _ := s.Chunk(coord)
		if rebuilt[coord] {
			assert.NotSame(t, before, c.Geometry(), "чанк %v должен перестроиться", coord)
		} else {
			assert.Same(t, before, c.Geometry(), "чанк %v не затронут", coord)
		}
	}

	assert.True(t, hasQuad(&neighbour.Geometry().Opaque, plusX, mgl32.Vec3{15.5, 5, 5}))
	home, _ := s.Chunk(vec.Vec3{})
	assert.True(t, hasQuad(&home.Geometry().Opaque, mesh.Left.Direction(), mgl32.Vec3{0.5, 5, 5}))
	assert.True(t, home.Modified())
	assert.False(t, neighbour.Modified())
}

func TestConcurrentEditAndUnloadKeepsEdit(t *testing.T) {
	e, s, gen, catalog := loadedEditor(t, EditorOptions{})
	stone := cellOf(t, catalog, "Stone")

	for k := 10; k < 60; k++ {
		coord := vec.Vec3{X: 16 * k}
		s.LoadOne(coord)

		pos := coord.Add(vec.Vec3{X: 5, Y: 5, Z: 5})
		target := block.Empty
		if gen.CellAt(pos).IsEmpty() {
			target = stone
		}

		var wg sync.WaitGroup
		var changed bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.UnloadOne(coord)
		}()
		go func() {
			defer wg.Done()
			changed = e.ApplyEdit(pos, target)
		}()
		wg.Wait()

		cell, resident := e.ReadBlock(pos)
		if changed {
			require.True(t, resident, "изменённый чанк %v выгружен", coord)
			require.True(t, cell.SameType(target))
			c, _ := s.Chunk(coord)
			assert.True(t, c.Modified())
			assert.False(t, c.Active())
		} else {
			assert.False(t, resident, "правка пропущена только для удалённого чанка %v", coord)
		}
	}
}

func TestPlaceBlockAboveSurface(t *testing.T) {
	catalog := testCatalog(t)
	gen := testGenerator(t, catalog)
	s, err := NewChunkStore(gen, mesh.NewGridAtlas(32), StoreOptions{
		ChunkSize:    16,
		LoadDistance: vec.Vec3{X: 1, Y: 1, Z: 1},
		Logger:       quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	e := NewEditor(s, EditorOptions{Catalog: catalog, Logger: quietLogger()})

	y := gen.Height(0, 0)
	if y < terrain.SeaLevel {
		y = terrain.SeaLevel
	}
	y++
	pos := vec.Vec3{X: 0, Y: y, Z: 0}

	s.UpdateLoadedChunks(pos.ToFloat())
	s.LoadAll(context.Background())

	cell, ok := e.ReadBlock(pos)
	require.True(t, ok)
	require.True(t, cell.IsEmpty())

	require.True(t, e.ApplyEdit(pos, cellOf(t, catalog, "Stone")))

	c, _ := s.ResolveChunk(pos)
	local := vec.Local(pos, 16)
	center := mgl32.Vec3{float32(local.X), float32(local.Y) + 0.5, float32(local.Z)}
	assert.True(t, hasQuad(&c.Geometry().Opaque, mesh.Up.Direction(), center))
	assert.False(t, e.ApplyEdit(pos, cellOf(t, catalog, "Stone")), "повторная правка ничего не меняет")
}

func TestApplyNamedEdits(t *testing.T) {
	e, _, _, _ := loadedEditor(t, EditorOptions{})

	_, err := e.ApplyNamedEdits([]vec.Vec3{{X: 1, Y: 1, Z: 1}}, []string{"Obsidian"})
	assert.ErrorIs(t, err, block.ErrUnknownBlockType)

	pos := []vec.Vec3{{X: 1, Y: 50, Z: 1}, {X: 1, Y: 2, Z: 1}}
	changed, err := e.ApplyNamedEdits(pos, []string{"Rose", "air"})
	require.NoError(t, err)
	assert.True(t, changed)

	cell, _ := e.ReadBlock(pos[0])
	assert.Equal(t, "Rose", cell.Name())
	cell, _ = e.ReadBlock(pos[1])
	assert.True(t, cell.IsEmpty())
}

func TestEditEventsCarrySounds(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	t.Cleanup(bus.Close)

	events := make(chan BlockEdit, 4)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.EventBlockEdited}}, func(ctx context.Context, ev *eventbus.Envelope) {
		var edit BlockEdit
		if ev.Decode(&edit) == nil {
			events <- edit
		}
	})
	require.NoError(t, err)

	e, _, _, catalog := loadedEditor(t, EditorOptions{Bus: bus})
	pos := vec.Vec3{X: 3, Y: 10, Z: 3}
	require.True(t, e.ApplyEdit(pos, cellOf(t, catalog, "Sand")))

	select {
	case edit := <-events:
		assert.Equal(t, pos, edit.Position)
		assert.Equal(t, "Sand", edit.To)
		assert.Equal(t, "place.sand", edit.Sound)
		assert.Empty(t, edit.BreakColors)
	case <-time.After(2 * time.Second):
		t.Fatal("событие установки не получено")
	}

	require.True(t, e.ApplyEdit(pos, block.Empty))
	select {
	case edit := <-events:
		assert.Equal(t, "air", edit.To)
		assert.Equal(t, "dig.sand", edit.Sound)
		assert.Equal(t, []string{"#dbd3a0"}, edit.BreakColors)
	case <-time.After(2 * time.Second):
		t.Fatal("событие разрушения не получено")
	}
}

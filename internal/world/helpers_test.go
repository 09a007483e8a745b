package world

import (
	"testing"
	"time"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/annel0/voxelcore/internal/world/terrain"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

// sourceFunc - источник ландшафта из функции
type sourceFunc func(x, y, z int) block.Cell

func (f sourceFunc) Cell(x, y, z int) block.Cell { return f(x, y, z) }

func airSource() sourceFunc {
	return func(x, y, z int) block.Cell { return block.Empty }
}

// chunkMap - соседи для тестов без хранилища
type chunkMap map[vec.Vec3]*Chunk

func (m chunkMap) NeighborCell(pos vec.Vec3) (block.Cell, bool) {
	c, ok := m[vec.ChunkOrigin(pos, 4)]
	if !ok {
		return block.Empty, false
	}
	return c.CellAt(pos)
}

func testCatalog(t *testing.T) *block.Catalog {
	t.Helper()
	c, err := block.DefaultCatalog()
	require.NoError(t, err)
	return c
}

func cellOf(t *testing.T, c *block.Catalog, name string) block.Cell {
	t.Helper()
	return block.Occupied(c.MustResolveName(name))
}

func testGenerator(t *testing.T, catalog *block.Catalog) *terrain.Generator {
	t.Helper()
	g, err := terrain.New(catalog, terrain.Options{Seed: 42})
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g
}

func quietLogger() *logging.Logger {
	return logging.NewConsoleLogger("test", discard{}, logging.ERROR+1)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestStore(t *testing.T, opts StoreOptions) (*ChunkStore, *terrain.Generator, *block.Catalog) {
	t.Helper()
	catalog := testCatalog(t)
	gen := testGenerator(t, catalog)
	if opts.ChunkSize == 0 {
		opts.ChunkSize = 16
	}
	if opts.LoadDistance == (vec.Vec3{}) {
		opts.LoadDistance = vec.Vec3{X: 1, Y: 1, Z: 1}
	}
	opts.Logger = quietLogger()
	s, err := NewChunkStore(gen, mesh.NewGridAtlas(32), opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, gen, catalog
}

// fakeClock сдвигается на step при каждом обращении
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

// hasQuad ищет квад с нормалью normal, центр которого совпадает с center
func hasQuad(m *mesh.Mesh, normal, center mgl32.Vec3) bool {
	for q := 0; q < m.QuadCount(); q++ {
		if !m.Normals[q*4].ApproxEqual(normal) {
			continue
		}
		var sum mgl32.Vec3
		for i := 0; i < 4; i++ {
			sum = sum.Add(m.Vertices[q*4+i])
		}
		if sum.Mul(0.25).ApproxEqualThreshold(center, 1e-4) {
			return true
		}
	}
	return false
}

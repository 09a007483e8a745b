package world

import (
	"fmt"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/go-gl/mathgl/mgl32"
)

// WaterSurfaceOffset опускает воду ниже берега, чтобы была видна кромка
const WaterSurfaceOffset = -0.0625

// Geometry - геометрия чанка по проходам.
// Opaque - непрозрачные блоки с обычным коллайдером,
// Water - жидкости (триггер, полупрозрачный материал),
// Cutout - прозрачные твёрдые блоки и спрайты растений.
type Geometry struct {
	Opaque mesh.Mesh `json:"opaque"`
	Water  mesh.Mesh `json:"water"`
	Cutout mesh.Mesh `json:"cutout"`
}

// QuadCount возвращает общее число квадов
func (g *Geometry) QuadCount() int {
	return g.Opaque.QuadCount() + g.Water.QuadCount() + g.Cutout.QuadCount()
}

// meshView - неизменяемый снимок чанка для мешинга
type meshView struct {
	cells     []block.Cell
	size      int
	origin    vec.Vec3
	neighbors NeighborSource
	src       CellSource
}

func (v *meshView) at(x, y, z int) block.Cell {
	return v.cells[(x*v.size+y)*v.size+z]
}

func (v *meshView) inRange(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < v.size && y < v.size && z < v.size
}

// neighbor читает соседнюю ячейку; за границей чанка - из резидентного соседа,
// иначе напрямую из генератора, никогда не дожидаясь загрузки соседа
func (v *meshView) neighbor(x, y, z int) block.Cell {
	if v.inRange(x, y, z) {
		return v.at(x, y, z)
	}
	pos := v.origin.Add(vec.Vec3{X: x, Y: y, Z: z})
	if v.neighbors != nil {
		if cell, ok := v.neighbors.NeighborCell(pos); ok {
			return cell
		}
	}
	return v.src.Cell(pos.X, pos.Y, pos.Z)
}

// visibility: грань видна, если сосед пуст или прозрачен и отличается по типу
func (v *meshView) visibility(x, y, z int) [block.FaceCount]bool {
	var vis [block.FaceCount]bool
	self := v.at(x, y, z)
	for _, f := range mesh.Faces {
		o := f.Offset()
		n := v.neighbor(x+o.X, y+o.Y, z+o.Z)
		vis[f] = n.SeeThrough() && !n.SameType(self)
	}
	return vis
}

// externalMask: воксель внешний, если у него меньше 6 соседей внутри чанка
// или хотя бы один сосед пуст/прозрачен. Воздух никогда не внешний.
func externalMask(cells []block.Cell, size int) []bool {
	mask := make([]bool, len(cells))
	at := func(x, y, z int) block.Cell { return cells[(x*size+y)*size+z] }

	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			for z := 0; z < size; z++ {
				i := (x*size+y)*size + z
				if cells[i].IsEmpty() {
					continue
				}
				if x == 0 || y == 0 || z == 0 || x == size-1 || y == size-1 || z == size-1 {
					mask[i] = true
					continue
				}
				mask[i] = at(x-1, y, z).SeeThrough() || at(x+1, y, z).SeeThrough() ||
					at(x, y-1, z).SeeThrough() || at(x, y+1, z).SeeThrough() ||
					at(x, y, z-1).SeeThrough() || at(x, y, z+1).SeeThrough()
			}
		}
	}
	return mask
}

// Visibility возвращает маску видимых граней вокселя (Up, Down, Forward, Back, Left, Right)
func (c *Chunk) Visibility(x, y, z int, neighbors NeighborSource, src CellSource) [block.FaceCount]bool {
	c.index(x, y, z)
	cells, _, _ := c.snapshot()
	v := &meshView{cells: cells, size: c.Size, origin: c.Origin, neighbors: neighbors, src: src}
	return v.visibility(x, y, z)
}

// BuildMesh строит геометрию по снимку сетки и сохраняет её в чанке
func (c *Chunk) BuildMesh(neighbors NeighborSource, src CellSource, atlas mesh.Atlas) *Geometry {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	cells, version, generated := c.snapshot()
	if !generated {
		panic(fmt.Sprintf("world: сборка геометрии %s до генерации", c))
	}

	view := &meshView{cells: cells, size: c.Size, origin: c.Origin, neighbors: neighbors, src: src}
	g := buildGeometry(view, atlas)

	c.mu.Lock()
	c.geometry = g
	// Правка во время сборки оставляет чанк грязным
	c.meshed = c.version == version
	c.mu.Unlock()
	return g
}

func buildGeometry(v *meshView, atlas mesh.Atlas) *Geometry {
	g := &Geometry{}
	g.Water.Offset = mgl32.Vec3{0, WaterSurfaceOffset, 0}
	g.Water.Trigger = true

	mask := externalMask(v.cells, v.size)
	for x := 0; x < v.size; x++ {
		for y := 0; y < v.size; y++ {
			for z := 0; z < v.size; z++ {
				if !mask[(x*v.size+y)*v.size+z] {
					continue
				}
				t, _ := v.at(x, y, z).Type()
				center := mgl32.Vec3{float32(x), float32(y), float32(z)}

				switch {
				case t.Billboard:
					cell := t.AtlasFor(0)
					g.Cutout.AddBillboard(center, atlas.UVs(cell.X, cell.Y))
				case t.Liquid:
					addFaces(&g.Water, t, v.visibility(x, y, z), center, atlas)
				case t.Transparent:
					addFaces(&g.Cutout, t, v.visibility(x, y, z), center, atlas)
				default:
					addFaces(&g.Opaque, t, v.visibility(x, y, z), center, atlas)
				}
			}
		}
	}
	return g
}

func addFaces(m *mesh.Mesh, t *block.BlockType, vis [block.FaceCount]bool, center mgl32.Vec3, atlas mesh.Atlas) {
	for _, f := range mesh.Faces {
		if !vis[f] {
			continue
		}
		cell := t.AtlasFor(int(f))
		m.AddFace(f, center, atlas.UVs(cell.X, cell.Y))
	}
}

package mesh

import "github.com/go-gl/mathgl/mgl32"

// DefaultAtlasCells - размер сетки атласа по умолчанию
const DefaultAtlasCells = 32

// Atlas отдаёт четыре UV-координаты для ячейки атласа.
// Порядок UV совпадает с порядком вершин квада.
type Atlas interface {
	UVs(cellX, cellY int) [4]mgl32.Vec2
}

// GridAtlas - атлас из квадратной сетки Cells x Cells одинаковых ячеек
type GridAtlas struct {
	Cells int
}

// NewGridAtlas создаёт атлас; неположительный размер заменяется значением по умолчанию
func NewGridAtlas(cells int) GridAtlas {
	if cells <= 0 {
		cells = DefaultAtlasCells
	}
	return GridAtlas{Cells: cells}
}

// UVs возвращает углы ячейки (cellX, cellY)
func (a GridAtlas) UVs(cellX, cellY int) [4]mgl32.Vec2 {
	step := 1 / float32(a.Cells)
	u0, v0 := float32(cellX)*step, float32(cellY)*step
	u1, v1 := u0+step, v0+step
	return [4]mgl32.Vec2{{u0, v0}, {u0, v1}, {u1, v1}, {u1, v0}}
}

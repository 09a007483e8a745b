package world

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/cespare/xxhash/v2"
)

// CellSource выдаёт содержимое ячейки по мировой позиции.
// Реализуется генератором ландшафта.
type CellSource interface {
	Cell(x, y, z int) block.Cell
}

// NeighborSource отдаёт ячейки сгенерированных резидентных чанков.
// false означает, что соседа нет в памяти.
type NeighborSource interface {
	NeighborCell(pos vec.Vec3) (block.Cell, bool)
}

// Chunk представляет кубический участок мира Size x Size x Size
type Chunk struct {
	Origin vec.Vec3 // Минимальный угол чанка в мировых координатах
	Size   int

	mu        sync.RWMutex
	cells     []block.Cell
	generated bool
	modified  bool
	active    bool
	meshed    bool
	version   uint64 // Счетчик изменений
	geometry  *Geometry

	// buildMu гарантирует не более одной сборки чанка одновременно
	buildMu sync.Mutex
}

// NewChunk создаёт пустой чанк. Неверный размер или невыровненный угол - ошибка программиста.
func NewChunk(origin vec.Vec3, size int) *Chunk {
	if size <= 0 {
		panic(fmt.Sprintf("world: недопустимый размер чанка %d", size))
	}
	if vec.ChunkOrigin(origin, size) != origin {
		panic(fmt.Sprintf("world: угол чанка %v не кратен размеру %d", origin, size))
	}
	return &Chunk{
		Origin: origin,
		Size:   size,
		cells:  make([]block.Cell, size*size*size),
	}
}

func (c *Chunk) inRange(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < c.Size && y < c.Size && z < c.Size
}

func (c *Chunk) index(x, y, z int) int {
	if !c.inRange(x, y, z) {
		panic(fmt.Sprintf("world: локальная позиция (%d,%d,%d) вне чанка размера %d", x, y, z, c.Size))
	}
	return (x*c.Size+y)*c.Size + z
}

// Contains проверяет, принадлежит ли мировая позиция чанку
func (c *Chunk) Contains(pos vec.Vec3) bool {
	l := pos.Sub(c.Origin)
	return c.inRange(l.X, l.Y, l.Z)
}

// Initialize заполняет все ячейки из источника ландшафта
func (c *Chunk) Initialize(src CellSource) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	n := c.Size
	cells := make([]block.Cell, n*n*n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				cells[(x*n+y)*n+z] = src.Cell(c.Origin.X+x, c.Origin.Y+y, c.Origin.Z+z)
			}
		}
	}

	c.mu.Lock()
	c.cells = cells
	c.generated = true
	c.meshed = false
	c.mu.Unlock()
}

// At возвращает ячейку по локальным координатам
func (c *Chunk) At(x, y, z int) block.Cell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cells[c.index(x, y, z)]
}

// CellAt возвращает ячейку по мировой позиции.
// false, если позиция вне чанка или чанк ещё не сгенерирован.
func (c *Chunk) CellAt(pos vec.Vec3) (block.Cell, bool) {
	if !c.Contains(pos) {
		return block.Empty, false
	}
	l := pos.Sub(c.Origin)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.generated {
		return block.Empty, false
	}
	return c.cells[c.index(l.X, l.Y, l.Z)], true
}

// Edit заменяет ячейку, если тип отличается. Возвращает true, если нужна пересборка.
func (c *Chunk) Edit(pos vec.Vec3, cell block.Cell) bool {
	_, changed := c.Swap(pos, cell)
	return changed
}

// Swap как Edit, но дополнительно возвращает прежнее содержимое
func (c *Chunk) Swap(pos vec.Vec3, cell block.Cell) (block.Cell, bool) {
	if !c.Contains(pos) {
		return block.Empty, false
	}
	l := pos.Sub(c.Origin)

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(l.X, l.Y, l.Z)
	old := c.cells[i]
	if old.SameType(cell) {
		return old, false
	}
	c.cells[i] = cell
	c.modified = true
	c.meshed = false
	c.version++
	return old, true
}

// snapshot копирует сетку, чтобы мешинг не держал блокировку чанка
func (c *Chunk) snapshot() ([]block.Cell, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]block.Cell(nil), c.cells...), c.version, c.generated
}

// ExternalMask отмечает воксели, которые могут иметь видимые грани
func (c *Chunk) ExternalMask() []bool {
	cells, _, _ := c.snapshot()
	return externalMask(cells, c.Size)
}

// Generated сообщает, заполнен ли чанк ландшафтом
func (c *Chunk) Generated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generated
}

// Modified сообщает, были ли правки после генерации
func (c *Chunk) Modified() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modified
}

// Active сообщает, отображается ли чанк
func (c *Chunk) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Meshed сообщает, актуальна ли геометрия
func (c *Chunk) Meshed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meshed
}

// Version возвращает счетчик изменений
func (c *Chunk) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Geometry возвращает последнюю построенную геометрию или nil
func (c *Chunk) Geometry() *Geometry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.geometry
}

func (c *Chunk) setActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
}

// waitBuild ждёт завершения текущей сборки
func (c *Chunk) waitBuild() {
	c.buildMu.Lock()
	// пустая критическая секция: только ожидание
	c.buildMu.Unlock()
}

// Digest - хеш содержимого сетки
func (c *Chunk) Digest() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h := xxhash.New()
	var buf [2]byte
	for _, cell := range c.cells {
		binary.LittleEndian.PutUint16(buf[:], uint16(cell.ID()))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func (c *Chunk) String() string {
	return fmt.Sprintf("Chunk(%d,%d,%d)", c.Origin.X, c.Origin.Y, c.Origin.Z)
}

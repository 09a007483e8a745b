package block

// Cell - содержимое одной ячейки воксельной сетки: пусто (воздух) или ссылка на тип.
// Нулевое значение означает воздух.
type Cell struct {
	t *BlockType
}

// Empty - ячейка воздуха
var Empty = Cell{}

// Occupied создает ячейку с блоком указанного типа. nil даёт воздух.
func Occupied(t *BlockType) Cell {
	return Cell{t: t}
}

// IsEmpty проверяет, является ли ячейка воздухом
func (c Cell) IsEmpty() bool {
	return c.t == nil
}

// Type возвращает тип блока и признак его наличия
func (c Cell) Type() (*BlockType, bool) {
	return c.t, c.t != nil
}

// ID возвращает идентификатор типа или AirID для воздуха
func (c Cell) ID() BlockID {
	if c.t == nil {
		return AirID
	}
	return c.t.ID
}

// SeeThrough истинно для воздуха и прозрачных блоков
func (c Cell) SeeThrough() bool {
	return c.t == nil || !c.t.Opaque()
}

// SameType сравнивает типы. Типы интернированы каталогом, поэтому достаточно указателей.
func (c Cell) SameType(other Cell) bool {
	return c.t == other.t
}

// Name возвращает имя типа или "air"
func (c Cell) Name() string {
	if c.t == nil {
		return "air"
	}
	return c.t.Name
}

func (c Cell) String() string {
	return c.Name()
}

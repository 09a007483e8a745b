package block

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownBlockType возвращается при обращении к незарегистрированному типу
	ErrUnknownBlockType = errors.New("unknown block type")
	// ErrInvalidCatalog возвращается при некорректном описании каталога
	ErrInvalidCatalog = errors.New("invalid block catalog")
)

// Catalog - реестр типов блоков.
// Заполняется один раз при старте и далее только читается, поэтому
// может использоваться из любого количества горутин без блокировок.
type Catalog struct {
	byID   map[BlockID]*BlockType
	byName map[string]*BlockType
	types  []*BlockType
}

// NewCatalog строит каталог из описаний типов
func NewCatalog(defs []BlockType) (*Catalog, error) {
	c := &Catalog{
		byID:   make(map[BlockID]*BlockType, len(defs)),
		byName: make(map[string]*BlockType, len(defs)),
		types:  make([]*BlockType, 0, len(defs)),
	}

	for i := range defs {
		def := defs[i]
		if def.ID == AirID {
			return nil, fmt.Errorf("%w: block %q uses reserved id 0", ErrInvalidCatalog, def.Name)
		}
		if def.Name == "" {
			return nil, fmt.Errorf("%w: block %d has no name", ErrInvalidCatalog, def.ID)
		}
		if n := len(def.Atlas); n != 1 && n != FaceCount {
			return nil, fmt.Errorf("%w: block %q has %d atlas cells, want 1 or %d", ErrInvalidCatalog, def.Name, n, FaceCount)
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidCatalog, def.ID)
		}
		if _, dup := c.byName[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidCatalog, def.Name)
		}

		def.Atlas = append([]AtlasCell(nil), def.Atlas...)
		def.BreakColors = append([]string(nil), def.BreakColors...)
		t := &def
		c.byID[t.ID] = t
		c.byName[t.Name] = t
		c.types = append(c.types, t)
	}

	sort.Slice(c.types, func(i, j int) bool { return c.types[i].ID < c.types[j].ID })
	return c, nil
}

// Resolve возвращает тип по идентификатору
func (c *Catalog) Resolve(id BlockID) (*BlockType, error) {
	t, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownBlockType, id)
	}
	return t, nil
}

// ResolveName возвращает тип по имени
func (c *Catalog) ResolveName(name string) (*BlockType, error) {
	t, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlockType, name)
	}
	return t, nil
}

// MustResolve паникует, если тип не найден. Только для связывания при старте.
func (c *Catalog) MustResolve(id BlockID) *BlockType {
	t, err := c.Resolve(id)
	if err != nil {
		panic(err)
	}
	return t
}

// MustResolveName паникует, если тип не найден. Только для связывания при старте.
func (c *Catalog) MustResolveName(name string) *BlockType {
	t, err := c.ResolveName(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Cell возвращает ячейку для пары (id, присутствует), как её отдаёт генератор
func (c *Catalog) Cell(id BlockID, present bool) (Cell, error) {
	if !present {
		return Empty, nil
	}
	t, err := c.Resolve(id)
	if err != nil {
		return Empty, err
	}
	return Occupied(t), nil
}

// Types возвращает все типы в порядке возрастания ID
func (c *Catalog) Types() []*BlockType {
	return append([]*BlockType(nil), c.types...)
}

// Len возвращает количество зарегистрированных типов
func (c *Catalog) Len() int {
	return len(c.types)
}

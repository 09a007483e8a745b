package world

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
)

// ErrLengthMismatch - число позиций и блоков в пакете правок не совпадает
var ErrLengthMismatch = errors.New("positions and blocks length mismatch")

// Editor - точка входа для чтения и изменения блоков поверх нескольких чанков
type Editor struct {
	store   *ChunkStore
	catalog *block.Catalog
	logger  *logging.Logger
	metrics *Metrics
	bus     eventbus.EventBus
}

// EditorOptions - зависимости редактора
type EditorOptions struct {
	Catalog *block.Catalog
	Logger  *logging.Logger
	Metrics *Metrics
	Bus     eventbus.EventBus
}

// NewEditor создаёт редактор поверх хранилища
func NewEditor(store *ChunkStore, opts EditorOptions) *Editor {
	if opts.Logger == nil {
		opts.Logger = logging.GetWorldLogger()
	}
	return &Editor{
		store:   store,
		catalog: opts.Catalog,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		bus:     opts.Bus,
	}
}

// ReadBlock возвращает содержимое позиции. false - чанк не в памяти
// (значение неизвестно, это не воздух).
func (e *Editor) ReadBlock(pos vec.Vec3) (block.Cell, bool) {
	c, ok := e.store.ResolveChunk(pos)
	if !ok {
		return block.Empty, false
	}
	return c.CellAt(pos)
}

// BlockEdit - применённая правка
type BlockEdit struct {
	Position    vec.Vec3 `json:"position"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Sound       string   `json:"sound,omitempty"`
	BreakColors []string `json:"break_colors,omitempty"`
}

// ApplyEdit применяет одну правку
func (e *Editor) ApplyEdit(pos vec.Vec3, cell block.Cell) bool {
	changed, _ := e.ApplyEdits([]vec.Vec3{pos}, []block.Cell{cell})
	return changed
}

// ApplyEdits применяет пакет правок. Позиции в невыгруженных чанках
// пропускаются. Если что-то изменилось, перестраиваются изменённые чанки
// и все резидентные чанки из 26-окрестности каждой правки.
func (e *Editor) ApplyEdits(positions []vec.Vec3, cells []block.Cell) (bool, error) {
	if len(positions) != len(cells) {
		return false, fmt.Errorf("%w: %d positions, %d blocks", ErrLengthMismatch, len(positions), len(cells))
	}

	// Группировка по чанкам с сохранением порядка первого появления
	groups := make(map[vec.Vec3][]int)
	order := make([]vec.Vec3, 0)
	for i, pos := range positions {
		coord := e.store.ChunkCoord(pos)
		if _, seen := groups[coord]; !seen {
			order = append(order, coord)
		}
		groups[coord] = append(groups[coord], i)
	}

	applied := make([]BlockEdit, 0, len(positions))
	for _, coord := range order {
		ok := e.store.editChunk(coord, func(c *Chunk) {
			for _, i := range groups[coord] {
				old, changed := c.Swap(positions[i], cells[i])
				if changed {
					applied = append(applied, newBlockEdit(positions[i], old, cells[i]))
				}
			}
		})
		if !ok {
			e.logger.Debug("Правка в невыгруженном чанке %v пропущена", coord)
		}
	}

	if len(applied) == 0 {
		return false, nil
	}

	dirty := e.neighborhood(applied)
	rebuilt := e.store.Rebuild(dirty)
	e.metrics.addEdits(len(applied), rebuilt)
	e.logger.Debug("✏️ Применено правок: %d, перестроено чанков: %d", len(applied), rebuilt)

	for _, edit := range applied {
		e.publish(edit)
	}
	return true, nil
}

// ApplyNamedEdits - то же, что ApplyEdits, с разрешением типов по имени.
// Пустое имя или "air" означает воздух.
func (e *Editor) ApplyNamedEdits(positions []vec.Vec3, names []string) (bool, error) {
	if e.catalog == nil {
		return false, fmt.Errorf("%w: каталог не задан", block.ErrUnknownBlockType)
	}
	if len(positions) != len(names) {
		return false, fmt.Errorf("%w: %d positions, %d blocks", ErrLengthMismatch, len(positions), len(names))
	}
	cells := make([]block.Cell, len(names))
	for i, name := range names {
		if name == "" || name == "air" {
			cells[i] = block.Empty
			continue
		}
		t, err := e.catalog.ResolveName(name)
		if err != nil {
			return false, err
		}
		cells[i] = block.Occupied(t)
	}
	return e.ApplyEdits(positions, cells)
}

// neighborhood - уникальные координаты резидентных чанков из 26-окрестности правок
func (e *Editor) neighborhood(edits []BlockEdit) []vec.Vec3 {
	seen := make(map[vec.Vec3]struct{})
	coords := make([]vec.Vec3, 0)
	for _, edit := range edits {
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for dz := -1; dz <= 1; dz++ {
					coord := e.store.ChunkCoord(edit.Position.Add(vec.Vec3{X: dx, Y: dy, Z: dz}))
					if _, ok := seen[coord]; ok {
						continue
					}
					seen[coord] = struct{}{}
					if _, ok := e.store.Chunk(coord); ok {
						coords = append(coords, coord)
					}
				}
			}
		}
	}
	return coords
}

func newBlockEdit(pos vec.Vec3, old, cell block.Cell) BlockEdit {
	edit := BlockEdit{Position: pos, From: old.Name(), To: cell.Name()}
	if t, ok := cell.Type(); ok {
		edit.Sound = t.Sounds.Place
	} else if t, ok := old.Type(); ok {
		edit.Sound = t.Sounds.Dig
		edit.BreakColors = t.BreakColors
	}
	return edit
}

func (e *Editor) publish(edit BlockEdit) {
	if e.bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope("editor", eventbus.EventBlockEdited, edit)
	if err != nil {
		e.logger.Error("Ошибка создания события правки: %v", err)
		return
	}
	// Правки не отбрасываются при переполнении буфера шины
	ev.Priority = 5
	if err := e.bus.Publish(context.Background(), ev); err != nil {
		e.logger.Debug("Событие правки не опубликовано: %v", err)
	}
}

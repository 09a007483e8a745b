package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultLoadBudget - бюджет времени загрузки на один тик
const DefaultLoadBudget = 20 * time.Millisecond

var (
	// ErrInvalidChunkSize - размер чанка должен быть положительным
	ErrInvalidChunkSize = errors.New("invalid chunk size")
	// ErrInvalidLoadDistance - дальность загрузки не может быть отрицательной
	ErrInvalidLoadDistance = errors.New("invalid load distance")
)

// StoreOptions - параметры хранилища чанков
type StoreOptions struct {
	ChunkSize    int
	LoadDistance vec.Vec3 // В чанках, по осям
	// LoadBudget ограничивает время загрузки за тик. 0 - без ограничения.
	LoadBudget time.Duration
	// Workers > 1 включает параллельную генерацию и мешинг на пуле
	Workers int
	Clock   func() time.Time

	Logger  *logging.Logger
	Metrics *Metrics
	Bus     eventbus.EventBus
	Tracer  trace.Tracer
}

// StoreStats - снимок состояния хранилища
type StoreStats struct {
	Resident    int `json:"resident"`
	Active      int `json:"active"`
	Retained    int `json:"retained"`
	LoadQueue   int `json:"load_queue"`
	UnloadQueue int `json:"unload_queue"`
}

// ChunkStore владеет резидентными чанками и очередями загрузки/выгрузки
type ChunkStore struct {
	size     int
	distance vec.Vec3
	budget   time.Duration
	workers  int
	clock    func() time.Time

	gen   CellSource
	atlas mesh.Atlas
	pool  pond.Pool

	logger  *logging.Logger
	metrics *Metrics
	bus     eventbus.EventBus
	tracer  trace.Tracer

	mu     sync.RWMutex
	chunks map[vec.Vec3]*Chunk

	qmu         sync.Mutex
	loadQueue   []vec.Vec3
	unloadQueue []vec.Vec3
	remesh      []vec.Vec3 // реактивированные чанки без актуальной геометрии
	lastCenter  vec.Vec3
	hasCenter   bool
}

// NewChunkStore создаёт хранилище. Ошибки параметров - ошибки конфигурации.
func NewChunkStore(gen CellSource, atlas mesh.Atlas, opts StoreOptions) (*ChunkStore, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, opts.ChunkSize)
	}
	d := opts.LoadDistance
	if d.X < 0 || d.Y < 0 || d.Z < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLoadDistance, d)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetStreamLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/annel0/voxelcore/internal/world")
	}

	s := &ChunkStore{
		size:     opts.ChunkSize,
		distance: d,
		budget:   opts.LoadBudget,
		workers:  opts.Workers,
		clock:    opts.Clock,
		gen:      gen,
		atlas:    atlas,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		bus:      opts.Bus,
		tracer:   opts.Tracer,
		chunks:   make(map[vec.Vec3]*Chunk),
	}
	if opts.Workers > 1 {
		s.pool = pond.NewPool(opts.Workers)
	}
	return s, nil
}

// Close останавливает пул воркеров
func (s *ChunkStore) Close() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// ChunkSize возвращает размер чанка
func (s *ChunkStore) ChunkSize() int {
	return s.size
}

// ChunkCoord возвращает координату чанка, содержащего pos
func (s *ChunkStore) ChunkCoord(pos vec.Vec3) vec.Vec3 {
	return vec.ChunkOrigin(pos, s.size)
}

// Chunk возвращает резидентный чанк по координате чанка
func (s *ChunkStore) Chunk(coord vec.Vec3) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[coord]
	return c, ok
}

// editChunk выполняет fn над резидентным чанком, не давая UnloadOne удалить
// его до завершения fn. fn не должна обращаться к методам хранилища.
func (s *ChunkStore) editChunk(coord vec.Vec3, fn func(c *Chunk)) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[coord]
	if !ok {
		return false
	}
	fn(c)
	return true
}

// ResolveChunk возвращает резидентный чанк, содержащий мировую позицию.
// Отсутствие чанка означает "неизвестно", а не воздух.
func (s *ChunkStore) ResolveChunk(pos vec.Vec3) (*Chunk, bool) {
	return s.Chunk(s.ChunkCoord(pos))
}

// NeighborCell реализует NeighborSource для мешинга
func (s *ChunkStore) NeighborCell(pos vec.Vec3) (block.Cell, bool) {
	c, ok := s.ResolveChunk(pos)
	if !ok {
		return block.Empty, false
	}
	return c.CellAt(pos)
}

// Resident возвращает координаты резидентных чанков в детерминированном порядке
func (s *ChunkStore) Resident() []vec.Vec3 {
	s.mu.RLock()
	coords := make([]vec.Vec3, 0, len(s.chunks))
	for coord := range s.chunks {
		coords = append(coords, coord)
	}
	s.mu.RUnlock()

	sort.Slice(coords, func(i, j int) bool {
		a, b := coords[i], coords[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return coords
}

// Stats возвращает снимок состояния
func (s *ChunkStore) Stats() StoreStats {
	var st StoreStats
	s.mu.RLock()
	st.Resident = len(s.chunks)
	for _, c := range s.chunks {
		if c.Active() {
			st.Active++
		} else if c.Modified() {
			st.Retained++
		}
	}
	s.mu.RUnlock()

	s.qmu.Lock()
	st.LoadQueue = len(s.loadQueue)
	st.UnloadQueue = len(s.unloadQueue)
	s.qmu.Unlock()
	return st
}

// LoadQueue возвращает копию очереди загрузки
func (s *ChunkStore) LoadQueue() []vec.Vec3 {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return append([]vec.Vec3(nil), s.loadQueue...)
}

// UnloadQueue возвращает копию очереди выгрузки
func (s *ChunkStore) UnloadQueue() []vec.Vec3 {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return append([]vec.Vec3(nil), s.unloadQueue...)
}

// LoadOne загружает чанк: генерирует, если его нет в памяти, реактивирует
// и строит геометрию, если она неактуальна.
func (s *ChunkStore) LoadOne(coord vec.Vec3) *Chunk {
	s.mustAligned(coord)

	c, ok := s.Chunk(coord)
	if !ok {
		fresh := s.generate(coord)
		c = s.insert(fresh)
	}
	c.setActive(true)
	if !c.Meshed() {
		s.mesh(c)
	}
	return c
}

// UnloadOne деактивирует чанк. Неизменённый чанк удаляется (его можно
// сгенерировать заново), изменённый остаётся в памяти со всеми правками.
func (s *ChunkStore) UnloadOne(coord vec.Vec3) bool {
	c, ok := s.Chunk(coord)
	if !ok {
		s.logger.Warn("⚠️ Попытка выгрузить отсутствующий чанк %v", coord)
		return false
	}

	c.waitBuild()
	c.setActive(false)

	// Проверка и удаление под s.mu: editChunk держит s.mu.RLock до конца правки
	s.mu.Lock()
	retained := c.Modified()
	if !retained && s.chunks[coord] == c {
		delete(s.chunks, coord)
	}
	s.mu.Unlock()

	if retained {
		s.metrics.observeUnload(true)
		s.logger.Debug("📦 Чанк %v изменён, остаётся в памяти", coord)
		s.publish(eventbus.EventChunkRetained, chunkEvent{Coord: coord})
		return true
	}

	s.metrics.observeUnload(false)
	s.publish(eventbus.EventChunkUnloaded, chunkEvent{Coord: coord})
	return true
}

// Rebuild перестраивает геометрию резидентных чанков. Возвращает число перестроенных.
func (s *ChunkStore) Rebuild(coords []vec.Vec3) int {
	targets := make([]*Chunk, 0, len(coords))
	for _, coord := range coords {
		if c, ok := s.Chunk(coord); ok {
			targets = append(targets, c)
		}
	}
	s.meshAll(targets)
	return len(targets)
}

func (s *ChunkStore) mustAligned(coord vec.Vec3) {
	if vec.ChunkOrigin(coord, s.size) != coord {
		panic(fmt.Sprintf("world: координата %v не кратна размеру чанка %d", coord, s.size))
	}
}

func (s *ChunkStore) generate(coord vec.Vec3) *Chunk {
	start := time.Now()
	c := NewChunk(coord, s.size)
	c.Initialize(s.gen)
	s.metrics.observeGenerate(time.Since(start))
	return c
}

// insert добавляет сгенерированный чанк; если чанк уже появился, возвращает существующий
func (s *ChunkStore) insert(c *Chunk) *Chunk {
	s.mu.Lock()
	if existing, ok := s.chunks[c.Origin]; ok {
		s.mu.Unlock()
		return existing
	}
	s.chunks[c.Origin] = c
	s.mu.Unlock()

	s.publish(eventbus.EventChunkLoaded, chunkEvent{Coord: c.Origin})
	return c
}

func (s *ChunkStore) mesh(c *Chunk) {
	start := time.Now()
	g := c.BuildMesh(s, s.gen, s.atlas)
	s.metrics.observeMesh(time.Since(start))
	s.logger.Trace("🧱 Геометрия %s: %d квадов", c, g.QuadCount())
	s.publish(eventbus.EventChunkMeshed, chunkEvent{Coord: c.Origin, Quads: g.QuadCount()})
}

// meshAll строит геометрию набора чанков; с пулом - параллельно
func (s *ChunkStore) meshAll(chunks []*Chunk) {
	if s.pool == nil || len(chunks) < 2 {
		for _, c := range chunks {
			s.mesh(c)
		}
		return
	}

	group := s.pool.NewGroup()
	for _, c := range chunks {
		c := c
		group.Submit(func() { s.mesh(c) })
	}
	if err := group.Wait(); err != nil {
		s.logger.Error("❌ Ошибка мешинга: %v", err)
	}
}

// chunkEvent - полезная нагрузка событий жизненного цикла чанка
type chunkEvent struct {
	Coord vec.Vec3 `json:"coord"`
	Quads int      `json:"quads,omitempty"`
}

func (s *ChunkStore) publish(eventType string, payload interface{}) {
	if s.bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope("world", eventType, payload)
	if err != nil {
		s.logger.Error("Ошибка создания события %s: %v", eventType, err)
		return
	}
	if err := s.bus.Publish(context.Background(), ev); err != nil {
		s.logger.Debug("Событие %s не опубликовано: %v", eventType, err)
	}
}

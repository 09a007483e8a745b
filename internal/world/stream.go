package world

import (
	"context"
	"sort"
	"time"

	"github.com/annel0/voxelcore/internal/vec"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TickStats - результат одного тика стриминга
type TickStats struct {
	Loaded   int
	Unloaded int
	Remeshed int
	Pending  int // Осталось в очереди загрузки
	Elapsed  time.Duration
}

// UpdateLoadedChunks пересчитывает желаемый набор чанков вокруг наблюдателя.
// Если наблюдатель не сменил чанк, ничего не делает и возвращает false.
func (s *ChunkStore) UpdateLoadedChunks(observer vec.Vec3Float) bool {
	center := s.ChunkCoord(observer.Floor())

	s.qmu.Lock()
	defer s.qmu.Unlock()

	if s.hasCenter && center == s.lastCenter {
		return false
	}
	s.lastCenter = center
	s.hasCenter = true

	desired := s.desiredCoords(center)
	wanted := make(map[vec.Vec3]struct{}, len(desired))
	for _, coord := range desired {
		wanted[coord] = struct{}{}
	}

	load := make([]vec.Vec3, 0, len(desired))
	unload := make([]vec.Vec3, 0)

	s.mu.RLock()
	for _, coord := range desired {
		c, ok := s.chunks[coord]
		if !ok {
			load = append(load, coord)
			continue
		}
		// Сохранённый изменённый чанк снова в зоне: реактивируем сразу,
		// чтобы резидентная координата не попала в очередь загрузки
		if !c.Active() {
			c.setActive(true)
			if !c.Meshed() {
				s.remesh = append(s.remesh, coord)
			}
		}
	}
	for coord, c := range s.chunks {
		if _, ok := wanted[coord]; !ok && c.Active() {
			unload = append(unload, coord)
		}
	}
	resident := len(s.chunks)
	s.mu.RUnlock()

	sortByDistance(unload, center)
	s.loadQueue = load
	s.unloadQueue = unload
	s.metrics.setQueues(resident, len(load), len(unload))

	s.logger.Debug("🧭 Наблюдатель в чанке %v: загрузить %d, выгрузить %d", center, len(load), len(unload))
	return true
}

// desiredCoords - координаты чанков в радиусе от центра, ближайшие первыми.
// Перебор идёт по коробке ±LoadDistance, порог - квадрат радиуса по X.
func (s *ChunkStore) desiredCoords(center vec.Vec3) []vec.Vec3 {
	r := s.distance
	maxSq := r.X * r.X

	type candidate struct {
		coord vec.Vec3
		dist  int
	}
	candidates := make([]candidate, 0, (2*r.X+1)*(2*r.Y+1)*(2*r.Z+1))
	for dx := -r.X; dx <= r.X; dx++ {
		for dy := -r.Y; dy <= r.Y; dy++ {
			for dz := -r.Z; dz <= r.Z; dz++ {
				d := dx*dx + dy*dy + dz*dz
				if d > maxSq {
					continue
				}
				offset := vec.Vec3{X: dx, Y: dy, Z: dz}.Scale(s.size)
				candidates = append(candidates, candidate{coord: center.Add(offset), dist: d})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	coords := make([]vec.Vec3, len(candidates))
	for i, c := range candidates {
		coords[i] = c.coord
	}
	return coords
}

func sortByDistance(coords []vec.Vec3, center vec.Vec3) {
	sort.SliceStable(coords, func(i, j int) bool {
		return coords[i].DistanceSq(center) < coords[j].DistanceSq(center)
	})
}

// Tick выполняет один шаг стриминга: загрузка в пределах бюджета времени,
// затем полная выгрузка очереди.
func (s *ChunkStore) Tick(ctx context.Context) TickStats {
	return s.tick(ctx, s.budget)
}

// LoadAll загружает всю очередь без ограничения по времени (первичная загрузка мира)
func (s *ChunkStore) LoadAll(ctx context.Context) TickStats {
	return s.tick(ctx, 0)
}

func (s *ChunkStore) tick(ctx context.Context, budget time.Duration) TickStats {
	start := s.clock()
	var st TickStats

	ctx, span := s.tracer.Start(ctx, "ChunkStore.Tick")
	defer span.End()

	if remesh := s.takeRemesh(); len(remesh) > 0 {
		st.Remeshed = s.Rebuild(remesh)
	}

	for ctx.Err() == nil {
		if budget > 0 && s.clock().Sub(start) >= budget {
			break
		}
		batch := s.popLoad(s.batchSize())
		if len(batch) == 0 {
			break
		}
		st.Loaded += s.loadBatch(ctx, batch)
	}

	for {
		coord, ok := s.popUnload()
		if !ok {
			break
		}
		if s.UnloadOne(coord) {
			st.Unloaded++
		}
	}

	st.Pending = len(s.LoadQueue())
	st.Elapsed = s.clock().Sub(start)
	span.SetAttributes(
		attribute.Int("chunks.loaded", st.Loaded),
		attribute.Int("chunks.unloaded", st.Unloaded),
		attribute.Int("chunks.pending", st.Pending),
	)

	stats := s.Stats()
	s.metrics.setQueues(stats.Resident, stats.LoadQueue, stats.UnloadQueue)
	if st.Loaded > 0 || st.Unloaded > 0 {
		s.logger.Debug("⏱️ Тик: загружено %d, выгружено %d, в очереди %d (%v)", st.Loaded, st.Unloaded, st.Pending, st.Elapsed)
	}
	return st
}

func (s *ChunkStore) batchSize() int {
	if s.pool == nil {
		return 1
	}
	return s.workers
}

func (s *ChunkStore) popLoad(n int) []vec.Vec3 {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if n > len(s.loadQueue) {
		n = len(s.loadQueue)
	}
	batch := append([]vec.Vec3(nil), s.loadQueue[:n]...)
	s.loadQueue = s.loadQueue[n:]
	return batch
}

func (s *ChunkStore) popUnload() (vec.Vec3, bool) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.unloadQueue) == 0 {
		return vec.Vec3{}, false
	}
	coord := s.unloadQueue[0]
	s.unloadQueue = s.unloadQueue[1:]
	return coord, true
}

func (s *ChunkStore) takeRemesh() []vec.Vec3 {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	remesh := s.remesh
	s.remesh = nil
	return remesh
}

// loadBatch загружает пачку чанков. С пулом сначала параллельно генерирует
// все новые чанки, вставляет их и только затем параллельно строит геометрию,
// чтобы соседи читали уже сгенерированные данные.
func (s *ChunkStore) loadBatch(ctx context.Context, coords []vec.Vec3) int {
	if s.pool == nil {
		for _, coord := range coords {
			s.LoadOne(coord)
		}
		return len(coords)
	}

	_, span := s.tracer.Start(ctx, "ChunkStore.loadBatch", trace.WithAttributes(attribute.Int("chunks", len(coords))))
	defer span.End()

	fresh := make([]*Chunk, len(coords))
	group := s.pool.NewGroup()
	for i, coord := range coords {
		i, coord := i, coord
		s.mustAligned(coord)
		if _, ok := s.Chunk(coord); ok {
			continue
		}
		group.Submit(func() { fresh[i] = s.generate(coord) })
	}
	if err := group.Wait(); err != nil {
		s.logger.Error("❌ Ошибка генерации чанков: %v", err)
	}

	loaded := make([]*Chunk, 0, len(coords))
	for i, coord := range coords {
		c := fresh[i]
		if c != nil {
			c = s.insert(c)
		} else if existing, ok := s.Chunk(coord); ok {
			c = existing
		} else {
			continue
		}
		c.setActive(true)
		loaded = append(loaded, c)
	}

	stale := make([]*Chunk, 0, len(loaded))
	for _, c := range loaded {
		if !c.Meshed() {
			stale = append(stale, c)
		}
	}
	s.meshAll(stale)
	return len(loaded)
}

// Run опрашивает позицию наблюдателя и выполняет тики до отмены контекста
func (s *ChunkStore) Run(ctx context.Context, observer func() vec.Vec3Float, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("🌍 Стриминг чанков запущен (интервал %v, бюджет %v)", interval, s.budget)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("🛑 Стриминг чанков остановлен")
			return nil
		case <-ticker.C:
			s.UpdateLoadedChunks(observer())
			s.Tick(ctx)
		}
	}
}

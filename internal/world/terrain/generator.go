package terrain

import (
	"fmt"
	"math"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/dgraph-io/ristretto"
)

// Константы генерации ландшафта
const (
	SeaLevel   = 35   // Уровень воды
	BaseHeight = 30   // Минимальная высота поверхности
	Amplitude  = 30   // Разброс высоты поверхности
	NoiseScale = 32.0 // Горизонтальный масштаб шума в блоках
	DirtDepth  = 3    // Толщина слоя земли под поверхностью

	// Смещения координат шума, чтобы ноль не попадал в особую точку
	NoiseOffsetX = 10000.0
	NoiseOffsetZ = 100000.0

	// Вероятности руд в промилле
	IronOrePermille    = 100
	DiamondOrePermille = 5
	DiamondMaxY        = 16
)

// Options задаёт параметры генератора
type Options struct {
	Seed int64
	// Noise - реализация шума: "perlin" (по умолчанию) или "opensimplex"
	Noise string
	// HeightCacheSize - число колонн в кеше высот. 0 отключает кеш.
	HeightCacheSize int64
}

// Generator - чистая детерминированная функция (x, y, z) -> тип блока.
// Безопасен для параллельного использования.
type Generator struct {
	seed    int64
	noise   Noise
	heights *ristretto.Cache

	bedrock, stone, ironOre, diamondOre *block.BlockType
	dirt, grass, sand, water            *block.BlockType
}

// New создаёт генератор. Все типы, которые он выдаёт, разрешаются через каталог
// сразу, поэтому неполный каталог является ошибкой конфигурации.
func New(catalog *block.Catalog, opts Options) (*Generator, error) {
	noise, err := NewNoise(opts.Noise, opts.Seed)
	if err != nil {
		return nil, err
	}

	g := &Generator{seed: opts.Seed, noise: noise}

	bind := []struct {
		name string
		dst  **block.BlockType
	}{
		{block.NameBedrock, &g.bedrock},
		{block.NameStone, &g.stone},
		{block.NameIronOre, &g.ironOre},
		{block.NameDiamondOre, &g.diamondOre},
		{block.NameDirt, &g.dirt},
		{block.NameGrass, &g.grass},
		{block.NameSand, &g.sand},
		{block.NameWater, &g.water},
	}
	for _, b := range bind {
		t, err := catalog.ResolveName(b.name)
		if err != nil {
			return nil, fmt.Errorf("генератор ландшафта: %w", err)
		}
		*b.dst = t
	}

	if opts.HeightCacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: opts.HeightCacheSize * 10,
			MaxCost:     opts.HeightCacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("ошибка создания кеша высот: %w", err)
		}
		g.heights = cache
	}

	return g, nil
}

// Seed возвращает сид мира
func (g *Generator) Seed() int64 {
	return g.seed
}

// Height возвращает высоту поверхности колонны (x, z)
func (g *Generator) Height(x, z int) int {
	if g.heights == nil {
		return g.height(x, z)
	}

	key := vec.Vec2{X: x, Y: z}.Key()
	if v, ok := g.heights.Get(key); ok {
		return v.(int)
	}
	h := g.height(x, z)
	g.heights.Set(key, h, 1)
	return h
}

func (g *Generator) height(x, z int) int {
	n := g.noise.Noise2D(float64(x)/NoiseScale+NoiseOffsetX, float64(z)/NoiseScale+NoiseOffsetZ)
	return int(math.Floor(n*Amplitude)) + BaseHeight
}

// Sample возвращает тип блока в мировой позиции. false означает воздух.
func (g *Generator) Sample(x, y, z int) (block.BlockID, bool) {
	t := g.sampleType(x, y, z)
	if t == nil {
		return block.AirID, false
	}
	return t.ID, true
}

// Cell возвращает содержимое ячейки в мировой позиции
func (g *Generator) Cell(x, y, z int) block.Cell {
	return block.Occupied(g.sampleType(x, y, z))
}

// CellAt - то же, что Cell, для вектора
func (g *Generator) CellAt(pos vec.Vec3) block.Cell {
	return g.Cell(pos.X, pos.Y, pos.Z)
}

func (g *Generator) sampleType(x, y, z int) *block.BlockType {
	if y <= 0 {
		return g.bedrock
	}

	h := g.Height(x, z)
	switch {
	case y < h-DirtDepth:
		return g.stoneOrOre(x, y, z)
	case y < h:
		return g.dirt
	case y == h && h > SeaLevel:
		return g.grass
	case y == h:
		return g.sand
	case y <= SeaLevel:
		return g.water
	default:
		return nil
	}
}

// stoneOrOre подменяет камень рудой детерминированно по координате и сиду
func (g *Generator) stoneOrOre(x, y, z int) *block.BlockType {
	roll := hash3(g.seed, x, y, z) % 1000
	if y < DiamondMaxY && roll < DiamondOrePermille {
		return g.diamondOre
	}
	if roll < IronOrePermille {
		return g.ironOre
	}
	return g.stone
}

// Close освобождает кеш высот
func (g *Generator) Close() {
	if g.heights != nil {
		g.heights.Close()
	}
}

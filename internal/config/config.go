package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCatalogPath - путь каталога блоков по умолчанию; при отсутствии файла
// используется встроенный каталог
const DefaultCatalogPath = "data/blocks.json"

var (
	// ErrInvalidChunkSize - размер чанка должен быть положительным
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	// ErrInvalidLoadDistance - компоненты дистанции загрузки не могут быть отрицательными
	ErrInvalidLoadDistance = errors.New("load distance must be non-negative")
	// ErrUnknownNoise - неизвестный бэкенд шума
	ErrUnknownNoise = errors.New("unknown noise backend")
	// ErrInvalidSeed - VOXEL_SEED не является целым числом
	ErrInvalidSeed = errors.New("invalid seed")
)

// Config корневая структура конфигурации мира.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Atlas     AtlasConfig     `yaml:"atlas"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WorldConfig - параметры сетки чанков и стриминга
type WorldConfig struct {
	// Seed 0 - случайный сид при запуске
	Seed           int64  `yaml:"seed"`
	ChunkSize      int    `yaml:"chunk_size"`
	LoadDistance   [3]int `yaml:"load_distance"`
	LoadBudgetMs   int    `yaml:"load_budget_ms"`
	Workers        int    `yaml:"workers"`
	TickIntervalMs int    `yaml:"tick_interval_ms"`
}

// TerrainConfig - параметры генератора ландшафта
type TerrainConfig struct {
	Noise       string `yaml:"noise"`
	HeightCache int64  `yaml:"height_cache"`
}

// CatalogConfig - источник каталога блоков
type CatalogConfig struct {
	// Source - адрес go-getter (файл, http, s3 ...). Пусто - встроенный каталог.
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
}

// AtlasConfig - размер атласа текстур в ячейках
type AtlasConfig struct {
	Cells int `yaml:"cells"`
}

// APIConfig - отладочный HTTP API
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// TelemetryConfig - экспорт трассировок OpenTelemetry
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
}

// LoggingConfig - уровень логирования компонентов
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			ChunkSize:      16,
			LoadDistance:   [3]int{4, 4, 4},
			LoadBudgetMs:   20,
			Workers:        1,
			TickIntervalMs: 50,
		},
		Terrain: TerrainConfig{
			Noise:       "perlin",
			HeightCache: 1 << 16,
		},
		Catalog: CatalogConfig{
			Path: DefaultCatalogPath,
		},
		Atlas: AtlasConfig{
			Cells: 32,
		},
		API: APIConfig{
			Addr: getEnvOr("VOXEL_API_ADDR", ":8088"),
		},
		Telemetry: TelemetryConfig{
			Service: "voxelcore",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// LoadBudget - бюджет времени загрузки на тик
func (w WorldConfig) LoadBudget() time.Duration {
	return time.Duration(w.LoadBudgetMs) * time.Millisecond
}

// TickInterval - период тиков стриминга
func (w WorldConfig) TickInterval() time.Duration {
	if w.TickIntervalMs <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(w.TickIntervalMs) * time.Millisecond
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	if c.World.ChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.World.ChunkSize)
	}
	for _, d := range c.World.LoadDistance {
		if d < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidLoadDistance, c.World.LoadDistance)
		}
	}
	if c.World.LoadBudgetMs < 0 {
		return fmt.Errorf("load budget must be non-negative: %d", c.World.LoadBudgetMs)
	}
	switch c.Terrain.Noise {
	case "", "perlin", "opensimplex":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNoise, c.Terrain.Noise)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берётся ENV VOXEL_CONFIG; если и он пуст, файл не читается.
// VOXEL_SEED переопределяет сид в обоих случаях.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if seed := os.Getenv("VOXEL_SEED"); seed != "" {
		v, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: VOXEL_SEED=%q", ErrInvalidSeed, seed)
		}
		cfg.World.Seed = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

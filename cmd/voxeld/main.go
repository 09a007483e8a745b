package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxelcore/internal/api"
	"github.com/annel0/voxelcore/internal/config"
	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/observability"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/annel0/voxelcore/internal/world/terrain"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $VOXEL_CONFIG)")
	flag.Parse()

	if err := logging.InitDefaultLogger("voxeld"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	if err := run(*configPath); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	lvl, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logging.Default().SetLevels(lvl, logging.DEBUG)
	logging.GetLoggerManager().SetLevels(lvl, logging.DEBUG)
	defer func() {
		if err := logging.GetLoggerManager().CloseAll(); err != nil {
			logging.Warn("⚠️ Ошибка закрытия логов компонентов: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("⚠️ Ошибка остановки телеметрии: %v", err)
		}
	}()

	catalog, err := loadCatalog(ctx, cfg.Catalog)
	if err != nil {
		return err
	}
	logging.Info("🧱 Каталог блоков: %d типов", catalog.Len())

	seed := cfg.World.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	gen, err := terrain.New(catalog, terrain.Options{
		Seed:            seed,
		Noise:           cfg.Terrain.Noise,
		HeightCacheSize: cfg.Terrain.HeightCache,
	})
	if err != nil {
		return err
	}
	defer gen.Close()
	logging.Info("🌱 Сид мира: %d, шум: %s", gen.Seed(), cfg.Terrain.Noise)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bus := eventbus.NewMemoryBus(1024)
	defer bus.Close()
	eventbus.Init(bus)
	if _, err := eventbus.StartLoggingListener(bus, logging.GetComponentLogger("events")); err != nil {
		return err
	}
	exporter, err := eventbus.NewMetricsExporter(bus, registry)
	if err != nil {
		return err
	}
	exporter.Start()
	defer exporter.Stop()

	worldMetrics, err := world.NewMetrics(registry)
	if err != nil {
		return err
	}

	store, err := world.NewChunkStore(gen, mesh.NewGridAtlas(cfg.Atlas.Cells), world.StoreOptions{
		ChunkSize: cfg.World.ChunkSize,
		LoadDistance: vec.Vec3{
			X: cfg.World.LoadDistance[0],
			Y: cfg.World.LoadDistance[1],
			Z: cfg.World.LoadDistance[2],
		},
		LoadBudget: cfg.World.LoadBudget(),
		Workers:    cfg.World.Workers,
		Logger:     logging.GetStreamLogger(),
		Metrics:    worldMetrics,
		Bus:        bus,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	editor := world.NewEditor(store, world.EditorOptions{
		Catalog: catalog,
		Logger:  logging.GetWorldLogger(),
		Metrics: worldMetrics,
		Bus:     bus,
	})

	// Наблюдатель появляется над поверхностью в начале координат
	spawn := vec.Vec3Float{X: 0.5, Y: float64(gen.Height(0, 0) + 2), Z: 0.5}
	observer := api.NewObserver(spawn)

	start := time.Now()
	store.UpdateLoadedChunks(spawn)
	st := store.LoadAll(ctx)
	logging.Info("🌍 Первичная загрузка: %d чанков за %v", st.Loaded, time.Since(start).Round(time.Millisecond))

	gin.SetMode(gin.ReleaseMode)
	server, err := api.NewRestServer(api.Config{
		Addr:     cfg.API.Addr,
		Store:    store,
		Editor:   editor,
		Catalog:  catalog,
		Bus:      bus,
		Observer: observer,
		Registry: registry,
		Logger:   logging.GetAPILogger(),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return store.Run(gctx, observer.Position, cfg.World.TickInterval())
	})
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("📡 Завершение работы...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logStats(store)
			}
		}
	})

	logging.Info("✅ Сервер запущен, REST API: http://localhost%s", cfg.API.Addr)
	return g.Wait()
}

// loadCatalog загружает каталог блоков: скачивает его из источника, читает
// локальный файл или берёт встроенный.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig) (*block.Catalog, error) {
	if cfg.Source != "" {
		logging.Info("📥 Загрузка каталога блоков из %s", cfg.Source)
		if err := block.FetchCatalog(ctx, cfg.Source, cfg.Path); err != nil {
			return nil, err
		}
	}
	if cfg.Path != "" {
		_, err := os.Stat(cfg.Path)
		switch {
		case err == nil:
			return block.LoadCatalog(cfg.Path)
		case cfg.Path != config.DefaultCatalogPath:
			return nil, fmt.Errorf("catalog %s: %w", cfg.Path, err)
		}
	}
	logging.Debug("Используется встроенный каталог блоков")
	return block.DefaultCatalog()
}

func logStats(store *world.ChunkStore) {
	st := store.Stats()
	size := store.ChunkSize()
	// Ячейка - указатель на тип блока
	approx := uint64(st.Resident) * uint64(size*size*size) * 8
	logging.Info("📊 Чанки: %d в памяти (%d активных, %d сохранённых), очереди %d/%d, ячейки ~%s",
		st.Resident, st.Active, st.Retained, st.LoadQueue, st.UnloadQueue, humanize.Bytes(approx))
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/middleware"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer - отладочный REST API поверх мира
type RestServer struct {
	router   *gin.Engine
	http     *http.Server
	store    *world.ChunkStore
	editor   *world.Editor
	catalog  *block.Catalog
	bus      eventbus.EventBus
	observer *Observer
	metrics  *ServerMetrics
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// Config содержит зависимости REST сервера
type Config struct {
	Addr     string               // адрес для запуска сервера
	Store    *world.ChunkStore    // хранилище чанков
	Editor   *world.Editor        // редактор блоков
	Catalog  *block.Catalog       // каталог типов блоков
	Bus      eventbus.EventBus    // шина событий (опционально)
	Observer *Observer            // позиция наблюдателя (опционально)
	Registry *prometheus.Registry // реестр метрик; nil - без /metrics
	Logger   *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) (*RestServer, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetAPILogger()
	}
	if cfg.Observer == nil {
		cfg.Observer = NewObserver(vec.Vec3Float{})
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())
	router.Use(otelgin.Middleware("voxel_api"))

	if cfg.Registry != nil {
		promMw, err := middleware.NewPrometheusMiddleware("voxel_api", cfg.Registry)
		if err != nil {
			return nil, err
		}
		router.Use(promMw.Handler())
		middleware.RegisterMetricsEndpoint(router, cfg.Registry)
	}

	rs := &RestServer{
		router:   router,
		store:    cfg.Store,
		editor:   cfg.Editor,
		catalog:  cfg.Catalog,
		bus:      cfg.Bus,
		observer: cfg.Observer,
		metrics:  NewServerMetrics(),
		logger:   cfg.Logger,
		upgrader: newUpgrader(),
	}
	rs.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs, nil
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/blocks", rs.handleGetBlock)
		api.GET("/blocks/types", rs.handleBlockTypes)
		api.POST("/edits", rs.handleEdits)
		api.POST("/observer", rs.handleObserver)
		api.GET("/chunks", rs.handleChunks)
		api.GET("/chunks/:x/:y/:z/mesh", rs.handleChunkMesh)
		api.GET("/events", rs.handleEvents)
	}
}

// Start запускает HTTP сервер и блокируется до его остановки
func (rs *RestServer) Start() error {
	rs.logger.Info("🌐 REST API слушает %s", rs.http.Addr)
	if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown корректно останавливает сервер
func (rs *RestServer) Shutdown(ctx context.Context) error {
	return rs.http.Shutdown(ctx)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": rs.metrics.GetUptime().String(),
	})
}

// StatsResponse - состояние мира и процесса
type StatsResponse struct {
	World      world.StoreStats `json:"world"`
	Observer   vec.Vec3Float    `json:"observer"`
	ChunkSize  int              `json:"chunk_size"`
	Uptime     string           `json:"uptime"`
	Memory     MemoryStats      `json:"memory"`
	CPUPercent float64          `json:"cpu_percent"`
	Bus        *eventbus.Stats  `json:"bus,omitempty"`
}

func (rs *RestServer) handleStats(c *gin.Context) {
	resp := StatsResponse{
		World:     rs.store.Stats(),
		Observer:  rs.observer.Position(),
		ChunkSize: rs.store.ChunkSize(),
		Uptime:    rs.metrics.GetUptime().String(),
		Memory:    rs.metrics.GetMemoryUsage(),
	}
	if cpu, err := rs.metrics.GetCPUUsage(); err == nil {
		resp.CPUPercent = cpu
	} else {
		rs.logger.Debug("CPU недоступен: %v", err)
	}
	if rs.bus != nil {
		st := rs.bus.Metrics()
		resp.Bus = &st
	}
	c.JSON(http.StatusOK, resp)
}

// BlockResponse - содержимое одной позиции
type BlockResponse struct {
	Position vec.Vec3 `json:"position"`
	Empty    bool     `json:"empty"`
	ID       uint16   `json:"id"`
	Name     string   `json:"name"`
}

func (rs *RestServer) handleGetBlock(c *gin.Context) {
	pos, ok := parseVec3(c, c.Query("x"), c.Query("y"), c.Query("z"))
	if !ok {
		return
	}
	cell, ok := rs.editor.ReadBlock(pos)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "чанк не загружен"})
		return
	}
	c.JSON(http.StatusOK, BlockResponse{
		Position: pos,
		Empty:    cell.IsEmpty(),
		ID:       uint16(cell.ID()),
		Name:     cell.Name(),
	})
}

func (rs *RestServer) handleBlockTypes(c *gin.Context) {
	if rs.catalog == nil {
		c.JSON(http.StatusOK, []*block.BlockType{})
		return
	}
	c.JSON(http.StatusOK, rs.catalog.Types())
}

// EditRequest - пакет правок; пустой block или "air" удаляет блок
type EditRequest struct {
	Edits []struct {
		X     int    `json:"x"`
		Y     int    `json:"y"`
		Z     int    `json:"z"`
		Block string `json:"block"`
	} `json:"edits" binding:"required"`
}

func (rs *RestServer) handleEdits(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	positions := make([]vec.Vec3, len(req.Edits))
	names := make([]string, len(req.Edits))
	for i, e := range req.Edits {
		positions[i] = vec.Vec3{X: e.X, Y: e.Y, Z: e.Z}
		names[i] = e.Block
	}

	changed, err := rs.editor.ApplyNamedEdits(positions, names)
	switch {
	case errors.Is(err, block.ErrUnknownBlockType), errors.Is(err, world.ErrLengthMismatch):
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Правки применены",
		Data:    gin.H{"changed": changed},
	})
}

func (rs *RestServer) handleObserver(c *gin.Context) {
	var pos vec.Vec3Float
	if err := c.ShouldBindJSON(&pos); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}
	rs.observer.Set(pos)
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Позиция наблюдателя обновлена",
		Data:    gin.H{"chunk": rs.store.ChunkCoord(pos.Floor())},
	})
}

// ChunkInfo - краткое состояние резидентного чанка
type ChunkInfo struct {
	Origin   vec.Vec3 `json:"origin"`
	Active   bool     `json:"active"`
	Modified bool     `json:"modified"`
	Meshed   bool     `json:"meshed"`
	Version  uint64   `json:"version"`
	Quads    int      `json:"quads"`
}

func (rs *RestServer) handleChunks(c *gin.Context) {
	coords := rs.store.Resident()
	chunks := make([]ChunkInfo, 0, len(coords))
	for _, coord := range coords {
		ch, ok := rs.store.Chunk(coord)
		if !ok {
			continue
		}
		info := ChunkInfo{
			Origin:   ch.Origin,
			Active:   ch.Active(),
			Modified: ch.Modified(),
			Meshed:   ch.Meshed(),
			Version:  ch.Version(),
		}
		if g := ch.Geometry(); g != nil {
			info.Quads = g.QuadCount()
		}
		chunks = append(chunks, info)
	}
	c.JSON(http.StatusOK, chunks)
}

func (rs *RestServer) handleChunkMesh(c *gin.Context) {
	coord, ok := parseVec3(c, c.Param("x"), c.Param("y"), c.Param("z"))
	if !ok {
		return
	}
	if rs.store.ChunkCoord(coord) != coord {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "координата не кратна размеру чанка"})
		return
	}
	ch, ok := rs.store.Chunk(coord)
	if !ok || ch.Geometry() == nil {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "геометрия чанка недоступна"})
		return
	}

	compress := acceptsZstd(c.GetHeader("Accept-Encoding"))
	data, err := encodeMesh(ch, compress)
	if err != nil {
		rs.logger.Error("❌ Ошибка выгрузки меша %v: %v", coord, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	if compress {
		c.Header("Content-Encoding", ContentEncodingZstd)
	}
	c.Data(http.StatusOK, "application/json", data)
}

func parseVec3(c *gin.Context, xs, ys, zs string) (vec.Vec3, bool) {
	var out [3]int
	for i, s := range []string{xs, ys, zs} {
		v, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверные координаты"})
			return vec.Vec3{}, false
		}
		out[i] = v
	}
	return vec.Vec3{X: out[0], Y: out[1], Z: out[2]}, true
}

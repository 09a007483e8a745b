package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/annel0/voxelcore/internal/world/terrain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *RestServer
	store  *world.ChunkStore
	bus    eventbus.EventBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logging.NewConsoleLogger("api-test", io.Discard, logging.ERROR)

	catalog, err := block.DefaultCatalog()
	require.NoError(t, err)
	gen, err := terrain.New(catalog, terrain.Options{Seed: 42})
	require.NoError(t, err)
	t.Cleanup(gen.Close)

	bus := eventbus.NewMemoryBus(64)
	t.Cleanup(bus.Close)

	store, err := world.NewChunkStore(gen, mesh.NewGridAtlas(32), world.StoreOptions{
		ChunkSize:    16,
		LoadDistance: vec.Vec3{X: 1, Y: 1, Z: 1},
		Logger:       logger,
		Bus:          bus,
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	store.UpdateLoadedChunks(vec.Vec3Float{})
	store.LoadAll(context.Background())

	editor := world.NewEditor(store, world.EditorOptions{Catalog: catalog, Logger: logger, Bus: bus})
	rs, err := NewRestServer(Config{
		Store:    store,
		Editor:   editor,
		Catalog:  catalog,
		Bus:      bus,
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	})
	require.NoError(t, err)
	return &fixture{server: rs, store: store, bus: bus}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthAndStats(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 7, stats.World.Resident)
	assert.Equal(t, 16, stats.ChunkSize)
	assert.NotEmpty(t, stats.Memory.Alloc)
	require.NotNil(t, stats.Bus)
}

func TestGetBlock(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/blocks?x=1&y=0&z=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp BlockResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bedrock", resp.Name)
	assert.False(t, resp.Empty)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/blocks?x=900&y=0&z=0", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/blocks?x=a&y=0&z=0", nil).Code)
}

func TestApplyEditsEndpoint(t *testing.T) {
	f := newFixture(t)

	body := map[string]interface{}{
		"edits": []map[string]interface{}{{"x": 2, "y": 4, "z": 2, "block": "Glass"}},
	}
	w := f.do(t, http.MethodPost, "/api/edits", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"changed":true`)

	w = f.do(t, http.MethodGet, "/api/blocks?x=2&y=4&z=2", nil)
	assert.Contains(t, w.Body.String(), `"name":"Glass"`)

	bad := map[string]interface{}{
		"edits": []map[string]interface{}{{"x": 2, "y": 4, "z": 2, "block": "Obsidian"}},
	}
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/edits", bad).Code)
}

func TestObserverEndpoint(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/observer", map[string]float64{"x": -0.5, "y": 20, "z": 40})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chunk":{"x":-16,"y":16,"z":32}`)
	assert.Equal(t, vec.Vec3Float{X: -0.5, Y: 20, Z: 40}, f.server.observer.Position())
}

func TestChunksAndMeshExport(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/chunks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var chunks []ChunkInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chunks))
	require.Len(t, chunks, 7)
	for _, c := range chunks {
		assert.True(t, c.Active)
		assert.True(t, c.Meshed)
	}

	// Полость внутри чанка гарантирует непустую геометрию
	hole := map[string]interface{}{
		"edits": []map[string]interface{}{{"x": 2, "y": 20, "z": 2, "block": ""}},
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/edits", hole).Code)

	plain := f.do(t, http.MethodGet, "/api/chunks/0/16/0/mesh", nil)
	require.Equal(t, http.StatusOK, plain.Code)
	assert.Empty(t, plain.Header().Get("Content-Encoding"))
	var payload MeshPayload
	require.NoError(t, json.Unmarshal(plain.Body.Bytes(), &payload))
	assert.Equal(t, [3]int{0, 16, 0}, payload.Origin)
	assert.GreaterOrEqual(t, payload.Quads, 6)
	assert.Equal(t, uint64(1), payload.Version)

	packed := f.do(t, http.MethodGet, "/api/chunks/0/16/0/mesh", nil, "Accept-Encoding", "gzip, zstd")
	require.Equal(t, http.StatusOK, packed.Code)
	assert.Equal(t, ContentEncodingZstd, packed.Header().Get("Content-Encoding"))
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	raw, err := dec.DecodeAll(packed.Body.Bytes(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, plain.Body.String(), string(raw))

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/chunks/3/0/0/mesh", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/chunks/320/0/0/mesh", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/health", nil)

	w := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "voxel_api_http_request_duration_seconds")
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events?type=" + eventbus.EventBlockEdited
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	body := map[string]interface{}{
		"edits": []map[string]interface{}{{"x": 3, "y": 3, "z": 3, "block": "air"}},
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/edits", body).Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev eventbus.Envelope
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, eventbus.EventBlockEdited, ev.EventType)

	var edit world.BlockEdit
	require.NoError(t, ev.Decode(&edit))
	assert.Equal(t, vec.Vec3{X: 3, Y: 3, Z: 3}, edit.Position)
	assert.Equal(t, "air", edit.To)
	assert.NotEmpty(t, edit.Sound)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("VOXEL_CONFIG", "")
	t.Setenv("VOXEL_SEED", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.World.ChunkSize)
	assert.Equal(t, 20*time.Millisecond, cfg.World.LoadBudget())
	assert.Equal(t, "perlin", cfg.Terrain.Noise)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
world:
  seed: 42
  chunk_size: 8
  load_distance: [2, 1, 2]
  load_budget_ms: 0
  workers: 4
terrain:
  noise: opensimplex
telemetry:
  enabled: true
`)
	t.Setenv("VOXEL_SEED", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.World.Seed)
	assert.Equal(t, 8, cfg.World.ChunkSize)
	assert.Equal(t, [3]int{2, 1, 2}, cfg.World.LoadDistance)
	assert.Zero(t, cfg.World.LoadBudget())
	assert.Equal(t, 4, cfg.World.Workers)
	assert.Equal(t, "opensimplex", cfg.Terrain.Noise)
	assert.True(t, cfg.Telemetry.Enabled)
	// Значения, не заданные в файле, остаются по умолчанию
	assert.Equal(t, "voxelcore", cfg.Telemetry.Service)
	assert.Equal(t, 50*time.Millisecond, cfg.World.TickInterval())
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "world:\n  seed: 1\n")
	t.Setenv("VOXEL_CONFIG", path)
	t.Setenv("VOXEL_SEED", "777")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(777), cfg.World.Seed)
}

func TestSeedEnvWithoutFile(t *testing.T) {
	t.Setenv("VOXEL_CONFIG", "")
	t.Setenv("VOXEL_SEED", "777")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(777), cfg.World.Seed)

	t.Setenv("VOXEL_SEED", "семь")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalidSeed)

	_, err = Load(writeConfig(t, "world:\n  seed: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.World.ChunkSize = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidChunkSize)

	cfg = Default()
	cfg.World.LoadDistance = [3]int{1, -1, 1}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidLoadDistance)

	cfg = Default()
	cfg.Terrain.Noise = "worley"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownNoise)

	_, err := Load(writeConfig(t, "world:\n  chunk_size: -4\n"))
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

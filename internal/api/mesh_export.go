package api

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/annel0/voxelcore/internal/world"
	"github.com/klauspost/compress/zstd"
)

// ContentEncodingZstd - значение Content-Encoding для сжатых мешей
const ContentEncodingZstd = "zstd"

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	encoderErr  error
)

func zstdEncoder() (*zstd.Encoder, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return encoder, encoderErr
}

// MeshPayload - геометрия чанка для отладочной выгрузки
type MeshPayload struct {
	Origin  [3]int          `json:"origin"`
	Version uint64          `json:"version"`
	Quads   int             `json:"quads"`
	Passes  *world.Geometry `json:"passes"`
}

// encodeMesh сериализует геометрию в JSON и при необходимости сжимает zstd
func encodeMesh(c *world.Chunk, compress bool) ([]byte, error) {
	g := c.Geometry()
	payload := MeshPayload{
		Origin:  [3]int{c.Origin.X, c.Origin.Y, c.Origin.Z},
		Version: c.Version(),
		Quads:   g.QuadCount(),
		Passes:  g,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if !compress {
		return data, nil
	}

	enc, err := zstdEncoder()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

func acceptsZstd(header string) bool {
	for _, part := range strings.Split(header, ",") {
		name := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(name, ContentEncodingZstd) {
			return true
		}
	}
	return false
}

package terrain

import (
	"fmt"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Поддерживаемые реализации шума
const (
	NoisePerlin      = "perlin"
	NoiseOpenSimplex = "opensimplex"
)

// Noise - двумерный когерентный шум со значениями в диапазоне [0, 1]
type Noise interface {
	Noise2D(x, y float64) float64
}

// perlinNoise - шум Перлина. Экземпляр свой у каждого генератора,
// поэтому генераторы с разными сидами не мешают друг другу.
type perlinNoise struct {
	p *perlin.Perlin
}

func newPerlinNoise(seed int64) *perlinNoise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &perlinNoise{p: perlin.NewPerlin(alpha, beta, n, seed)}
}

// Noise2D преобразует значение шума (от -1 до 1) в диапазон от 0 до 1
func (pn *perlinNoise) Noise2D(x, y float64) float64 {
	return clamp01((pn.p.Noise2D(x, y) + 1.0) / 2.0)
}

type simplexNoise struct {
	n opensimplex.Noise
}

func newSimplexNoise(seed int64) *simplexNoise {
	return &simplexNoise{n: opensimplex.NewNormalized(seed)}
}

func (sn *simplexNoise) Noise2D(x, y float64) float64 {
	return clamp01(sn.n.Eval2(x, y))
}

// NewNoise создает шум по имени реализации. Пустое имя означает Перлин.
func NewNoise(kind string, seed int64) (Noise, error) {
	switch kind {
	case "", NoisePerlin:
		return newPerlinNoise(seed), nil
	case NoiseOpenSimplex:
		return newSimplexNoise(seed), nil
	default:
		return nil, fmt.Errorf("неизвестный тип шума: %q", kind)
	}
}

// clamp01 ограничивает значение полуинтервалом [0, 1), чтобы высота не выходила за амплитуду
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return 0.9999999
	}
	return v
}

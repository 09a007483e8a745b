package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// QuadIndices - два треугольника квада с единым обходом
var QuadIndices = [6]uint32{0, 1, 2, 0, 2, 3}

// Quad - единичный квадрат грани, центрированный на вокселе
type Quad struct {
	Vertices [4]mgl32.Vec3
	Normal   mgl32.Vec3
}

var (
	axisUp      = mgl32.Vec3{0, 1, 0}
	axisForward = mgl32.Vec3{0, 0, 1}
	axisBack    = mgl32.Vec3{0, 0, -1}

	// Канонический квад смотрит вверх
	canonicalQuad = [4]mgl32.Vec3{
		{-0.5, 0.5, -0.5},
		{-0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5},
		{0.5, 0.5, -0.5},
	}

	faceQuads = buildFaceQuads()
)

func buildFaceQuads() [len(Faces)]Quad {
	var quads [len(Faces)]Quad
	for _, f := range Faces {
		quads[f] = FaceQuad(f.Direction())
	}
	return quads
}

// QuadFor возвращает заранее построенный квад грани
func QuadFor(f Face) Quad {
	return faceQuads[f]
}

// FaceQuad строит квад с нормалью dir: минимальный поворот из "вверх",
// для "вперёд" дополнительно разворот на 180° вокруг Y, для остальных
// горизонтальных направлений поворот "назад" -> горизонтальная проекция dir.
func FaceQuad(dir mgl32.Vec3) Quad {
	rot := mgl32.QuatBetweenVectors(axisUp, dir)

	flat := mgl32.Vec3{dir.X(), 0, dir.Z()}
	if axisForward.Dot(flat) > 0.99 {
		rot = rot.Mul(mgl32.QuatRotate(math.Pi, axisUp))
	} else if flat.Dot(flat) > 0.01 {
		rot = rot.Mul(mgl32.QuatBetweenVectors(axisBack, flat.Normalize()))
	}

	var q Quad
	for i, v := range canonicalQuad {
		q.Vertices[i] = snapHalf(rot.Rotate(v))
	}
	q.Normal = dir
	return q
}

// snapHalf убирает погрешность поворота: вершины лежат на кратных 0.5
func snapHalf(v mgl32.Vec3) mgl32.Vec3 {
	for i := range v {
		v[i] = float32(math.Round(float64(v[i])*2)) / 2
	}
	return v
}

// billboardQuads - две диагональные плоскости для блоков-спрайтов
var billboardQuads = [2][4]mgl32.Vec3{
	{{-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}, {0.5, -0.5, 0.5}},
	{{-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}, {0.5, -0.5, -0.5}},
}

// quadNormal вычисляет нормаль по обходу (v1-v0)x(v2-v0)
func quadNormal(v [4]mgl32.Vec3) mgl32.Vec3 {
	return v[1].Sub(v[0]).Cross(v[2].Sub(v[0])).Normalize()
}

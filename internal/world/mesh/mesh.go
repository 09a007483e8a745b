package mesh

import "github.com/go-gl/mathgl/mgl32"

// Mesh - объединённая геометрия одного прохода чанка.
// Координаты вершин локальны относительно минимального угла чанка.
type Mesh struct {
	Vertices []mgl32.Vec3 `json:"vertices"`
	Normals  []mgl32.Vec3 `json:"normals"`
	UVs      []mgl32.Vec2 `json:"uvs"`
	Indices  []uint32     `json:"indices"`
	// Offset - смещение всей геометрии (вода опущена ниже берега)
	Offset mgl32.Vec3 `json:"offset"`
	// Trigger - коллайдер только для срабатывания, без столкновений
	Trigger bool `json:"trigger"`
}

// AddFace добавляет грань вокселя с центром center
func (m *Mesh) AddFace(f Face, center mgl32.Vec3, uv [4]mgl32.Vec2) {
	q := QuadFor(f)
	m.addQuad(q.Vertices, q.Normal, center, uv)
}

// AddBillboard добавляет две пересекающиеся двусторонние плоскости
func (m *Mesh) AddBillboard(center mgl32.Vec3, uv [4]mgl32.Vec2) {
	for _, plane := range billboardQuads {
		m.addQuad(plane, quadNormal(plane), center, uv)

		back := [4]mgl32.Vec3{plane[0], plane[3], plane[2], plane[1]}
		backUV := [4]mgl32.Vec2{uv[0], uv[3], uv[2], uv[1]}
		m.addQuad(back, quadNormal(back), center, backUV)
	}
}

func (m *Mesh) addQuad(verts [4]mgl32.Vec3, normal, center mgl32.Vec3, uv [4]mgl32.Vec2) {
	base := uint32(len(m.Vertices))
	for i := range verts {
		m.Vertices = append(m.Vertices, verts[i].Add(center))
		m.Normals = append(m.Normals, normal)
		m.UVs = append(m.UVs, uv[i])
	}
	for _, idx := range QuadIndices {
		m.Indices = append(m.Indices, base+idx)
	}
}

// QuadCount возвращает число квадов
func (m *Mesh) QuadCount() int {
	return len(m.Vertices) / 4
}

// Empty сообщает, что геометрии нет
func (m *Mesh) Empty() bool {
	return len(m.Vertices) == 0
}

package mesh

import (
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

// Face - грань вокселя. Порядок совпадает с порядком текстур в атласе блока.
type Face int

const (
	Up      Face = iota // +Y
	Down                // -Y
	Forward             // +Z
	Back                // -Z
	Left                // -X
	Right               // +X
)

// Faces перечисляет все грани в каноническом порядке
var Faces = [...]Face{Up, Down, Forward, Back, Left, Right}

var faceOffsets = [...]vec.Vec3{
	Up:      {X: 0, Y: 1, Z: 0},
	Down:    {X: 0, Y: -1, Z: 0},
	Forward: {X: 0, Y: 0, Z: 1},
	Back:    {X: 0, Y: 0, Z: -1},
	Left:    {X: -1, Y: 0, Z: 0},
	Right:   {X: 1, Y: 0, Z: 0},
}

var faceNames = [...]string{"up", "down", "forward", "back", "left", "right"}

// Offset возвращает смещение к соседней ячейке
func (f Face) Offset() vec.Vec3 {
	return faceOffsets[f]
}

// Direction возвращает нормаль грани
func (f Face) Direction() mgl32.Vec3 {
	o := faceOffsets[f]
	return mgl32.Vec3{float32(o.X), float32(o.Y), float32(o.Z)}
}

func (f Face) String() string {
	if f < 0 || int(f) >= len(faceNames) {
		return "unknown"
	}
	return faceNames[f]
}

package vec

// Vec2 представляет 2D координаты колонны мира (X, Z)
type Vec2 struct {
	X, Y int
}

// Key упаковывает координаты в uint64 для использования в кешах
func (v Vec2) Key() uint64 {
	return uint64(uint32(int32(v.X)))<<32 | uint64(uint32(int32(v.Y)))
}

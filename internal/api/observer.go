package api

import (
	"sync"

	"github.com/annel0/voxelcore/internal/vec"
)

// Observer хранит позицию наблюдателя, которую задаёт клиент через API
// и опрашивает цикл стриминга.
type Observer struct {
	mu  sync.RWMutex
	pos vec.Vec3Float
}

// NewObserver создаёт наблюдателя в начальной позиции
func NewObserver(pos vec.Vec3Float) *Observer {
	return &Observer{pos: pos}
}

// Set перемещает наблюдателя
func (o *Observer) Set(pos vec.Vec3Float) {
	o.mu.Lock()
	o.pos = pos
	o.mu.Unlock()
}

// Position возвращает текущую позицию
func (o *Observer) Position() vec.Vec3Float {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pos
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	eventBuffer  = 256
	writeTimeout = 5 * time.Second
)

// handleEvents стримит события шины в websocket. Фильтр по типу задаётся
// параметром ?type= (можно несколько раз).
func (rs *RestServer) handleEvents(c *gin.Context) {
	if rs.bus == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "шина событий не подключена"})
		return
	}

	out := make(chan *eventbus.Envelope, eventBuffer)
	filter := eventbus.Filter{Types: c.QueryArray("type")}
	// Подписка до апгрейда, чтобы клиент не пропустил события сразу после рукопожатия
	sub, err := rs.bus.Subscribe(c.Request.Context(), filter, func(ctx context.Context, ev *eventbus.Envelope) {
		select {
		case out <- ev:
		default:
			rs.logger.Warn("⚠️ Клиент событий не успевает, событие %s отброшено", ev.EventType)
		}
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	defer sub.Unsubscribe()

	conn, err := rs.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rs.logger.Debug("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Читатель нужен для обработки close/ping от клиента
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	rs.logger.Debug("🔌 Подписчик событий подключен: %s", c.ClientIP())
	for {
		select {
		case <-ctx.Done():
			rs.logger.Debug("🔌 Подписчик событий отключен: %s", c.ClientIP())
			return
		case ev := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // отладочный интерфейс
	}
}

package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storybook-server/internal/model"
)

const (
	// Время на запись одного сообщения клиенту.
	writeWait = 10 * time.Second
	// Время ожидания pong от клиента.
	pongWait = 60 * time.Second
	// Должно быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Клиент ничего не присылает, кроме управляющих кадров.
	maxMessageSize = 512
)

func (h *StorybookHandler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.origins) == 0 || slices.Contains(h.origins, "*") {
				return true
			}
			return slices.Contains(h.origins, origin)
		},
	}
}

// streamStatus отправляет текущий статус книги и все последующие обновления
// до завершающего статуса.
func (h *StorybookHandler) streamStatus(c *gin.Context) {
	storybookID := c.Param("id")
	userID := userIDFrom(c)
	log := h.logger.With(zap.String("storybook_id", storybookID), zap.String("user_id", userID))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Подписка до чтения снимка, чтобы не пропустить обновление между ними
	updates, err := h.status.Subscribe(ctx, storybookID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	current, err := h.ownedStatus(ctx, storybookID, userID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()
	log.Info("Status stream opened", zap.String("status", string(current.Status)))

	go readPump(conn, cancel)

	if !h.send(conn, log, *current) || current.Terminal() {
		h.closeStream(conn)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug("Status stream closed by client")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if !h.send(conn, log, update) {
				return
			}
			if update.Terminal() {
				log.Info("Status stream finished", zap.String("status", string(update.Status)))
				h.closeStream(conn)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StorybookHandler) send(conn *websocket.Conn, log *zap.Logger, update model.ProgressUpdate) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(update); err != nil {
		log.Warn("Failed to write status update", zap.Error(err))
		return false
	}
	return true
}

func (h *StorybookHandler) closeStream(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "generation finished"),
		time.Now().Add(writeWait))
}

// readPump обрабатывает pong и close от клиента. Любая ошибка чтения
// завершает поток.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

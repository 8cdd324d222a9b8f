// server/internal/api/handlers/websocket_handler.go
package handlers

import (
	"net/http"
	"time"

	"github.com/freightbid/bidding-api/internal/auth"
	"github.com/freightbid/bidding-api/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const pongWait = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub    *socket.Hub
	Secret string
	Log    *logrus.Logger
}

// ServeWs handles GET /api/v1/ws?loadId=...&token=... and streams board
// updates for one load until the client disconnects.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	loadID := c.Query("loadId")
	if loadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "loadId is required"})
		return
	}
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}

	actor, err := auth.ParseToken(h.Secret, tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.WithError(err).Error("websocket upgrade failed")
		return
	}

	unsubscribe := h.Hub.Subscribe(loadID, actor.UserID, conn)
	defer func() {
		unsubscribe()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Log.WithError(err).Debug("unexpected websocket close")
			}
			break
		}
	}
}

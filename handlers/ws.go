package handlers

import (
	"net/http"

	"voicecab/services/realtime"
	"voicecab/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler upgrades event stream subscriptions onto the realtime hub.
type WSHandler struct {
	Hub *realtime.Hub
}

// SubscribeHandler upgrades the connection and hands it to the hub. The
// client names its channels in the first frame.
func (h *WSHandler) SubscribeHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.Hub.HandleConn(conn)
}

package websocket

import (
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the request and subscribes the connection to the
// user named by the userId query parameter.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
		if err != nil || userID <= 0 {
			http.Error(w, "User ID is required", http.StatusBadRequest)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // dashboard may be served from another origin
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		NewClient(hub, conn, userID).Run(r.Context())
	}
}

package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/mafia/internal/domain"
	"github.com/dkeye/mafia/internal/wire"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	pollInterval = 100 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleEvents upgrades to a websocket and pushes the client's inbox as it
// fills. The socket is push-only; clients act through the REST endpoints.
func (ctl *Controller) HandleEvents(ctx context.Context, c *gin.Context) {
	token, err := bearerToken(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	// Authenticate before upgrading so bad tokens get a proper status.
	if _, err := ctl.Server.AuthClient(token); err != nil {
		abortWithError(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.httpapi").Msg("ws upgrade")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cancel, ws, token)
	go ctl.readPump(cancel, ws)
}

// writePump polls the inbox and writes each event as a tagged envelope.
func (ctl *Controller) writePump(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, token domain.SessionToken) {
	defer cancel()
	defer ws.Close()

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(writeWait)
			_ = ws.WriteControl(websocket.CloseMessage, nil, deadline)
			return

		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-poll.C:
			events, err := ctl.Server.TakeEvents(token)
			if err != nil {
				log.Info().Err(err).Str("module", "adapters.httpapi").Msg("ws session ended")
				return
			}

			for _, ev := range events {
				raw, err := wire.Encode(ev)
				if err != nil {
					log.Error().Err(err).Str("module", "adapters.httpapi").Msg("encode event")
					continue
				}
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
					return
				}
			}
		}
	}
}

// readPump discards inbound frames; it exists to service pongs and detect
// the peer closing.
func (ctl *Controller) readPump(cancel context.CancelFunc, ws *websocket.Conn) {
	defer cancel()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// Package httpapi exposes the game server over REST plus a push-only
// websocket for the event stream.
package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/mafia/internal/config"
	"github.com/dkeye/mafia/internal/core"
)

func SetupRouter(ctx context.Context, cfg *config.Config, server *core.Server) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	ctl := NewController(server)

	api := r.Group("/api")
	api.POST("/connect", ctl.Connect)
	api.POST("/disconnect", ctl.Disconnect)
	api.POST("/message", ctl.SendMessage)
	api.POST("/vote", ctl.CastVote)
	api.GET("/events", ctl.Events)
	api.GET("/ws/events", func(c *gin.Context) {
		ctl.HandleEvents(ctx, c)
	})

	admin := api.Group("/admin")
	if cfg.AdminToken != "" {
		admin.Use(adminAuth(cfg.AdminToken))
	}
	admin.POST("/game/start", ctl.StartGame)
	admin.POST("/game/end", ctl.EndGame)
	admin.POST("/broadcast", ctl.Broadcast)
	admin.POST("/kick", ctl.Kick)

	log.Info().Str("module", "adapters.httpapi").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

// adminAuth gates the admin group behind a shared secret.
func adminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != secret {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}

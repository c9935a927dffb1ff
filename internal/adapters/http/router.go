// Package http wires the gin surface: the websocket endpoint, a health
// check, room stats and the internal endpoint the persistence collaborator
// pushes freshly stored messages through.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/connecthub/relay/internal/adapters/signal"
	"github.com/connecthub/relay/internal/app"
	"github.com/connecthub/relay/internal/config"
	"github.com/connecthub/relay/internal/domain"
)

// MessageSink is where the notify endpoint records a message so later
// status updates can resolve its chat scope.
type MessageSink interface {
	Track(id domain.MessageID, participants []domain.UserID)
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, sink MessageSink) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ConnectHubSessions", store))
	r.Use(ClientTokenMiddleware())

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"rooms":       orch.Router.Stats(),
			"connections": orch.Registry.ConnCount(),
		})
	})

	ctl := signal.NewController(orch, cfg)
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client_token", c.GetString("client_token")).
			Msg("ws endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	// Internal surface for the persistence collaborator; not exposed to
	// browsers. It calls here after a message is durably written so the
	// relay can fan it out to the participants' devices.
	internal := api.Group("/internal")
	internal.POST("/messages", func(c *gin.Context) {
		var req struct {
			MessageID    domain.MessageID `json:"messageId"`
			Message      json.RawMessage  `json:"message"`
			Participants []domain.UserID  `json:"participants"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.MessageID == "" || len(req.Participants) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "messageId, message and participants required"})
			return
		}
		if sink != nil {
			sink.Track(req.MessageID, req.Participants)
		}
		delivered := orch.NotifyNewMessage(req.Message, req.Participants)
		c.JSON(http.StatusOK, gin.H{"delivered": delivered})
	})

	return r
}

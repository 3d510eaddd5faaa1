package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sparkleclean/realtime/internal/auth"
	"github.com/sparkleclean/realtime/internal/config"
	"github.com/sparkleclean/realtime/internal/core"
	"github.com/sparkleclean/realtime/internal/metrics"
	"github.com/sparkleclean/realtime/internal/store"
)

// NewServer builds the gateway HTTP server: REST API, metrics and the
// WebSocket endpoints.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiHandlers := NewAPIHandlers(authService, logger)
	profileHandlers := NewProfileHandlers(st, logger)
	roomHandlers := NewRoomHandlers(st, logger)
	paymentHandlers := NewPaymentHandlers(st, logger)
	notificationHandlers := NewNotificationHandlers(st, logger)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)

		// Public profile reads.
		api.GET("/profile/client/:user_id", profileHandlers.ClientProfile)
		api.GET("/profile/cleaner/:user_id", profileHandlers.CleanerProfile)

		authorized := api.Group("")
		authorized.Use(AuthMiddleware(authService, logger))
		{
			authorized.GET("/rooms", roomHandlers.ListRooms)
			authorized.GET("/rooms/:room_id/messages", roomHandlers.ListMessages)
			authorized.GET("/payments/history", paymentHandlers.History)
			authorized.GET("/payments/payouts/earnings", paymentHandlers.Earnings)
			authorized.GET("/notifications", notificationHandlers.List)
			authorized.POST("/notifications/:id/read", notificationHandlers.MarkRead)
		}
	}

	// The WebSocket routes mount on the outer mux, not on gin: gin's response
	// writer refuses hijacking once the 101 handshake is written, so the
	// upgrade needs the raw http.ResponseWriter. Everything else falls
	// through to the gin router.
	wsHandler := NewWSHandler(hub, authService, st, cfg, logger)
	mux := stdhttp.NewServeMux()
	mux.HandleFunc("GET /ws/chat", wsHandler.Unified)
	mux.HandleFunc("GET /ws/notifications/{user_id}", wsHandler.Notifications)

	// Deprecated per-room sockets, kept for old clients. Same wire protocol,
	// auto-subscribed to the single room.
	mux.HandleFunc("GET /ws/chat/{room_id}", wsHandler.LegacyRoom)
	mux.HandleFunc("GET /ws/job_chat/{job_id}", wsHandler.LegacyJobRoom)

	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-realtime/internal/auth"
	"github.com/vovakirdan/wirechat-realtime/internal/config"
)

// NewServer builds an HTTP server exposing health, metrics and the websocket endpoint.
func NewServer(hub Hub, verifier auth.Verifier, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(hub, verifier, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts /ws on a plain ServeMux and everything else on the gin router.
// The websocket upgrade needs to hijack the raw ResponseWriter, which gin's writer refuses.
func NewHandler(hub Hub, verifier auth.Verifier, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, verifier, cfg, logger))
	mux.Handle("/", NewRouter(cfg, logger))
	return mux
}

// NewRouter builds the gin engine serving health and metrics.
func NewRouter(cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	if cfg.MetricsEnabled {
		router.Use(MetricsMiddleware())
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.GET("/health", healthHandler)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

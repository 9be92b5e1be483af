package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"privlens/internal/config"
)

// NewRouter builds the engine with recovery, request IDs, logging and CORS.
func NewRouter(cfg *config.Config, log zerolog.Logger) *gin.Engine {
	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Upload.MaxBytes
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))

	corsCfg := cors.Config{
		AllowOrigins:  cfg.Server.AllowOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.Server.AllowOrigins) == 0 || (len(cfg.Server.AllowOrigins) == 1 && cfg.Server.AllowOrigins[0] == "*") {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	return r
}

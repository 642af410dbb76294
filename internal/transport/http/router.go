package http

import (
	"github.com/gin-gonic/gin"
	"github.com/richardliu001/ledger-service/internal/auth"
	"github.com/richardliu001/ledger-service/internal/config"
	"go.uber.org/zap"
)

func NewRouter(h *Handlers, tokens *auth.Tokens, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	RegisterHandlers(r, h, AuthMiddleware(tokens))
	return r
}

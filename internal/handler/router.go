package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weirwood/scry/internal/middleware"
	"github.com/weirwood/scry/internal/pkg/response"
)

type RouterDeps struct {
	Images    *ImageHandler
	Metrics   http.Handler
	RateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	resolveGroup := api.Group("")
	if deps.RateLimit > 0 {
		resolveGroup.Use(middleware.RateLimit(deps.RateLimit))
	}
	resolveGroup.POST("/images/resolve", deps.Images.Resolve)

	api.GET("/cache/status", deps.Images.CacheStatus)
	api.GET("/healthz", healthz)
	if deps.Metrics != nil {
		api.GET("/metrics", gin.WrapH(deps.Metrics))
	}
}

func healthz(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

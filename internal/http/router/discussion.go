package router

import (
	"github.com/gin-gonic/gin"

	"hyperscribe.app/scribe/internal/http/handler"
)

func DiscussionRouter(rg *gin.RouterGroup, h *handler.DiscussionHandler, effects *handler.EffectStreamHandler) {
	rg.GET("", h.Get)
	rg.POST("/chunks", h.UploadChunk)
	rg.POST("/resync", h.Resync)
	if effects != nil {
		rg.GET("/effects/stream", effects.Stream)
	}
}

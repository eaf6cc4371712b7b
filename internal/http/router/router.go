package router

import (
	"github.com/gin-gonic/gin"

	"hyperscribe.app/scribe/internal/http/handler"
)

type Handlers struct {
	Discussions *handler.DiscussionHandler
	Effects     *handler.EffectStreamHandler // optional
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		DiscussionRouter(v1.Group("/discussions/:discussion_id"), h.Discussions, h.Effects)
	}
}

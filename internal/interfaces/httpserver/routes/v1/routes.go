package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/gallery-api/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

func NewRoutes(provider *handlers.Provider) *Routes {
	return &Routes{handlers: provider}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(router gin.IRouter) {
	group := router.Group("/v1")

	group.GET("/feed", r.handlers.Media.Feed)
	group.GET("/profiles/:owner_id", r.handlers.Media.Profile)
	group.POST("/uploads", r.handlers.Upload.Upload)

	media := group.Group("/media/:id")
	media.GET("", r.handlers.Media.Get)
	media.PATCH("", r.handlers.Media.Update)
	media.DELETE("", r.handlers.Media.Delete)
	media.POST("/like", r.handlers.Media.Like)
	media.DELETE("/like", r.handlers.Media.Unlike)
	media.GET("/url", r.handlers.Media.URL)

	albums := group.Group("/albums/:id")
	albums.GET("", r.handlers.Album.Get)
	albums.PATCH("", r.handlers.Album.Update)
	albums.DELETE("", r.handlers.Album.Delete)
	albums.POST("/like", r.handlers.Album.Like)
	albums.DELETE("/like", r.handlers.Album.Unlike)
	albums.GET("/download", r.handlers.Album.Download)
}

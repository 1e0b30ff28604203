package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"sync-party/internal/handlers"
	"sync-party/internal/logging"
	"sync-party/internal/middleware"
)

func NewRouter(log *logging.Logger, sync *handlers.SyncHandler, library *handlers.LibraryHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/sync", sync.GetSession)
	r.POST("/sync", sync.CreateSession)
	r.PUT("/sync", sync.UpdateSession)
	r.DELETE("/sync", sync.DeleteSession)

	r.GET("/music", library.GetTracks)
	r.POST("/music", library.AddTrack)

	return r
}

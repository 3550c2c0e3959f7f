package api

import (
	"github.com/gin-gonic/gin"
)

func registerStreamRoutes(api *gin.RouterGroup, deps Deps) {
	// The stream is how the app receives in-app notifications and navigate
	// commands; a connected session is what makes navigation "ready".
	api.GET("/stream", func(c *gin.Context) {
		deps.Hub.Serve(c.Writer, c.Request)
	})
}

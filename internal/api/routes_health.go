package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/keepstack/keepsync/pkg/response"
)

// healthHandler reports process and database health for readiness checks.
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"status":  "degraded",
			})
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keepstack/keepsync/internal/notify"
	apperrors "github.com/keepstack/keepsync/pkg/errors"
	"github.com/keepstack/keepsync/pkg/response"
	"github.com/keepstack/keepsync/pkg/validator"
)

func registerTapRoutes(api *gin.RouterGroup, deps Deps) {
	api.POST("/taps", func(c *gin.Context) {
		var event notify.TapEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			response.Error(c, apperrors.NewBadRequest("invalid tap payload"))
			return
		}
		if err := validator.ValidateStruct(event); err != nil {
			response.Error(c, apperrors.NewBadRequest(err.Error()))
			return
		}

		if err := deps.Taps.Observe(event); err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusAccepted, gin.H{"insight_id": event.InsightID})
	})

	api.PUT("/permission", func(c *gin.Context) {
		var body struct {
			Granted bool `json:"granted"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, apperrors.NewBadRequest("invalid permission payload"))
			return
		}

		if deps.Gate != nil {
			deps.Gate.SetGranted(body.Granted)
		}
		response.Success(c, http.StatusOK, gin.H{"granted": body.Granted})
	})
}

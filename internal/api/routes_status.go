package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keepstack/keepsync/internal/insights"
	"github.com/keepstack/keepsync/pkg/response"
)

type statusPayload struct {
	Poller     insights.Stats `json:"poller"`
	Sessions   int            `json:"sessions"`
	Permission bool           `json:"permission_granted"`
	Cursor     *time.Time     `json:"cursor,omitempty"`
	Deliveries int64          `json:"deliveries"`
}

func registerStatusRoutes(api *gin.RouterGroup, deps Deps) {
	api.GET("/status", func(c *gin.Context) {
		payload := statusPayload{
			Poller:   deps.Poller.Snapshot(),
			Sessions: deps.Hub.Sessions(),
		}
		if deps.Gate != nil {
			payload.Permission = deps.Gate.Granted()
		}
		if deps.Cursors != nil {
			if value, found, err := deps.Cursors.Get(c.Request.Context()); err == nil && found {
				payload.Cursor = &value
			}
		}
		if deps.Journal != nil {
			if count, err := deps.Journal.Count(c.Request.Context()); err == nil {
				payload.Deliveries = count
			}
		}
		response.Success(c, http.StatusOK, payload)
	})

	api.GET("/deliveries", func(c *gin.Context) {
		if deps.Journal == nil {
			response.Success(c, http.StatusOK, []any{})
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		entries, err := deps.Journal.ListRecent(c.Request.Context(), limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, entries)
	})
}

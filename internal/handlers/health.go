package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/database"
	"storefront/internal/response"
)

type healthView struct {
	Status    string    `json:"status"`
	Uptime    float64   `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

// Health reports process uptime and whether the database answers a ping.
// A nil db reports "unknown".
func Health(db *mongo.Database, started time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		view := healthView{
			Status:    "ok",
			Uptime:    time.Since(started).Seconds(),
			Timestamp: time.Now().UTC(),
			Database:  "unknown",
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := database.Ping(ctx, db); err != nil {
				view.Status = "degraded"
				view.Database = "down"
				c.JSON(http.StatusServiceUnavailable, response.Envelope{Success: false, Message: "database unavailable", Data: view})
				return
			}
			view.Database = "up"
		}

		response.OK(c, "healthy", view)
	}
}

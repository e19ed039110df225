package http

import (
	"time"

	"github.com/gin-gonic/gin"
)

// actorHeader carries the caller identity stamped by the API gateway.
const actorHeader = "X-Actor"

// actorFrom resolves the audit actor for the current request.
func actorFrom(c *gin.Context) string {
	if actor := c.GetHeader(actorHeader); actor != "" {
		return actor
	}
	return "api"
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

package middlewares

import (
	"content-wiki/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/samborkent/uuidv7"
)

const RequestIdHeader = "X-Request-ID"

// RequestIdMiddleware takes the request id of the X-Request-ID header or creates one,
// echoes it in the response and stores it in the request context for logging.
func RequestIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader(RequestIdHeader)
		if len(requestId) == 0 || len(requestId) > 64 {
			requestId = uuidv7.New().String()
		}

		c.Header(RequestIdHeader, requestId)
		c.Request = c.Request.WithContext(logging.WithRequestId(c.Request.Context(), requestId))

		c.Next()
	}
}

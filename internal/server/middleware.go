package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestTimeMiddleware logs the method, route and latency of every request.
func RequestTimeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		reqTime := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logrus.Infof("request time: %s %s %d: %v", c.Request.Method, path, c.Writer.Status(), reqTime)
	}
}

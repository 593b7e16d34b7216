// middleware/metrics.go
package middleware

import (
	"strconv"
	"time"

	"creator-portal/utils"

	"github.com/gofiber/fiber/v2"
)

// RequestMetrics records request counts and latency per route pattern.
func RequestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		code := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			} else {
				code = fiber.StatusInternalServerError
			}
		}

		utils.HTTPRequestTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
		utils.HTTPRequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
		return err
	}
}

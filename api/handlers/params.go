package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultRequestTimeout = 10 * time.Second

func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// parseLimit returns defaultVal for missing or non-positive input and caps
// the result at maxVal when maxVal is positive.
func parseLimit(raw string, defaultVal, maxVal int) int {
	limit := parseInt(raw, defaultVal)
	if limit <= 0 {
		limit = defaultVal
	}
	if maxVal > 0 && limit > maxVal {
		limit = maxVal
	}
	return limit
}

func parseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

package httpapi

import (
	"github.com/gin-gonic/gin"
)

// Error codes returned in JSON error bodies.
const (
	ErrorCodeValidation = "validation_error"
	ErrorCodeNotFound   = "not_found"
	ErrorCodeConflict   = "already_running"
	ErrorCodeUpstream   = "upstream_error"
	ErrorCodeInternal   = "internal_error"
)

// JSONError writes {"error": {"code", "message"}}.
func JSONError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error writes the portal's JSON error body. Messages stay generic on
// auth failures: callers never learn whether a token was malformed,
// expired or unknown.
func Error(c *gin.Context, httpStatus int, msg string) {
	c.JSON(httpStatus, gin.H{"error": msg})
}

// OK writes a 200 response with the given body.
func OK(c *gin.Context, body gin.H) {
	c.JSON(http.StatusOK, body)
}

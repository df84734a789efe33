package handler

import (
	"net/http"

	"mentor-portal/internal/middleware"
	"mentor-portal/internal/util"

	"github.com/gin-gonic/gin"
)

// GetMe returns the verified-session view of the current user
// (requires RequireSession).
func GetMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	util.OK(c, gin.H{"user": user})
}

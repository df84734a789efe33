package middleware

import (
	"log"
	"net/http"

	"mentor-portal/internal/auth"
	"mentor-portal/internal/models"
	"mentor-portal/internal/rbac"
	"mentor-portal/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "session"

const currentUserKey = "currentUser"

// RequireSession resolves the session cookie to an AuthUser and puts
// it in the request context. Missing or invalid sessions get a 401
// with a generic body; no denial record is written for 401s.
func RequireSession(sessions *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			util.Error(c, http.StatusUnauthorized, "Not authenticated")
			c.Abort()
			return
		}

		user := sessions.VerifySession(c.Request.Context(), token)
		if user == nil {
			util.Error(c, http.StatusUnauthorized, "Invalid session")
			c.Abort()
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the AuthUser placed by RequireSession, or nil.
func CurrentUser(c *gin.Context) *auth.AuthUser {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, ok := v.(*auth.AuthUser)
	if !ok {
		return nil
	}
	return user
}

// RequirePermission rejects with 403 and records the denial when the
// session's role lacks the permission. Must run after RequireSession.
func RequirePermission(db *gorm.DB, perm rbac.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			util.Error(c, http.StatusUnauthorized, "Not authenticated")
			c.Abort()
			return
		}
		if !user.HasPermission(perm) {
			RecordDenial(c, db, user, "missing "+perm.String()+" permission")
			util.Error(c, http.StatusForbidden, "Forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAnyRole rejects with 403 and records the denial when the
// session's role is not in the allowed set. Used for the admin console
// surface, which admits the senior-mentor tier alongside admins.
func RequireAnyRole(db *gorm.DB, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			util.Error(c, http.StatusUnauthorized, "Not authenticated")
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		RecordDenial(c, db, user, "role "+string(user.Role)+" not permitted")
		util.Error(c, http.StatusForbidden, "Forbidden")
		c.Abort()
	}
}

// RecordDenial emits a structured denial record to the server log and,
// best-effort, to the access_logs table. It never fails the request:
// a broken audit store must not take authorization down with it.
func RecordDenial(c *gin.Context, db *gorm.DB, user *auth.AuthUser, reason string) {
	actor := "unauthenticated"
	if user != nil {
		actor = user.Email
	}
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}

	log.Printf("[security] access denied on route '%s': %s. Actor: %s", route, reason, actor)

	if db == nil {
		return
	}
	entry := models.AccessLog{
		Actor:     actor,
		Route:     route,
		Reason:    reason,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	_ = db.Create(&entry).Error
}

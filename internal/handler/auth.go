package handler

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"mentor-portal/internal/auth"
	"mentor-portal/internal/middleware"
	"mentor-portal/internal/uclapi"
	"mentor-portal/internal/util"

	"github.com/gin-gonic/gin"
)

// AuthHandler drives the OAuth login flow: redirect out, callback in,
// logout.
type AuthHandler struct {
	Sessions     *auth.SessionManager
	OAuth        *uclapi.Client
	BaseURL      string // public origin, no trailing slash
	SecureCookie bool
	cookieMaxAge int
}

func NewAuthHandler(sessions *auth.SessionManager, oauth *uclapi.Client, baseURL string, secureCookie bool, ttlHours int) *AuthHandler {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &AuthHandler{
		Sessions:     sessions,
		OAuth:        oauth,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		SecureCookie: secureCookie,
		cookieMaxAge: ttlHours * 60 * 60,
	}
}

func (h *AuthHandler) callbackURL() string {
	return h.BaseURL + "/api/auth/callback"
}

// statePayload rides through the provider as base64 JSON and carries
// the post-login destination.
type statePayload struct {
	RedirectTo string `json:"redirectTo"`
}

// Login redirects the browser to the provider's authorize URL.
func (h *AuthHandler) Login(c *gin.Context) {
	redirectTo := c.DefaultQuery("redirect", "/dashboard")

	raw, err := json.Marshal(statePayload{RedirectTo: redirectTo})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to start login")
		return
	}
	state := base64.StdEncoding.EncodeToString(raw)

	c.Redirect(http.StatusFound, h.OAuth.AuthURL(h.callbackURL(), state))
}

// Callback handles the provider's redirect: code exchange, profile
// fetch, session creation, cookie set. Any upstream failure turns into
// a login-page redirect, never a raw 500.
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")

	if c.Query("result") == "denied" || code == "" {
		c.Redirect(http.StatusFound, h.BaseURL+"/login?error=access_denied")
		return
	}

	ctx := c.Request.Context()

	accessToken, err := h.OAuth.ExchangeCode(ctx, code, h.callbackURL())
	if err != nil {
		log.Printf("handler: code exchange failed: %v", err)
		c.Redirect(http.StatusFound, h.BaseURL+"/login?error=auth_failed")
		return
	}

	profile, err := h.OAuth.UserInfo(ctx, accessToken)
	if err != nil {
		log.Printf("handler: user info fetch failed: %v", err)
		c.Redirect(http.StatusFound, h.BaseURL+"/login?error=auth_failed")
		return
	}

	token, err := h.Sessions.CreateSession(ctx, profile)
	if err != nil {
		log.Printf("handler: session creation failed: %v", err)
		c.Redirect(http.StatusFound, h.BaseURL+"/login?error=auth_failed")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, h.cookieMaxAge, "/", "", h.SecureCookie, true)
	c.Redirect(http.StatusFound, h.BaseURL+decodeRedirect(state))
}

// decodeRedirect recovers the post-login path from the state blob,
// falling back to the dashboard on anything malformed.
func decodeRedirect(state string) string {
	const fallback = "/dashboard"
	if state == "" {
		return fallback
	}
	raw, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		return fallback
	}
	var payload statePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fallback
	}
	if payload.RedirectTo == "" || !strings.HasPrefix(payload.RedirectTo, "/") {
		return fallback
	}
	return payload.RedirectTo
}

// Logout deletes the session and clears the cookie. Always succeeds
// from the browser's point of view.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(middleware.SessionCookie); err == nil && token != "" {
		h.Sessions.DeleteSession(c.Request.Context(), token)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.SecureCookie, true)
	util.OK(c, gin.H{"success": true})
}

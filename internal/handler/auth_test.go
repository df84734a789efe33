package handler

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mentor-portal/internal/auth"
	"mentor-portal/internal/config"
	"mentor-portal/internal/database"
	"mentor-portal/internal/models"
	"mentor-portal/internal/uclapi"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fakeProvider stands in for the institutional OAuth provider.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("code") != "abc123" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/oauth/user/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ok": true,
			"email": "a@ucl.ac.uk",
			"given_name": "A",
			"sn": "B",
			"full_name": "A B",
			"department": "Computer Science",
			"is_student": false,
			"upi": "ABCDE12",
			"ucl_groups": ["SPT2425-x"]
		}`))
	})
	return httptest.NewServer(mux)
}

type authFixture struct {
	db       *gorm.DB
	sessions *auth.SessionManager
	router   *gin.Engine
}

func newAuthFixture(t *testing.T, name, providerURL string) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testDB(t, name)
	oauthCfg := config.OAuthConfig{
		BaseURL:            providerURL,
		ClientID:           "client-id",
		ClientSecret:       "client-secret",
		TimeoutSeconds:     2,
		MentorGroups:       []string{"programmingtutors2425"},
		SeniorMentorGroups: []string{"SPT2425"},
	}
	sessions := auth.NewSessionManager(db,
		config.JWTConfig{Secret: "test-secret", Issuer: "mentor-portal", ExpireHours: 24},
		oauthCfg)

	h := NewAuthHandler(sessions, uclapi.NewClient(oauthCfg),
		"http://portal.example", false, 24)

	r := gin.New()
	r.GET("/api/auth/login", h.Login)
	r.GET("/api/auth/callback", h.Callback)
	r.POST("/api/auth/logout", h.Logout)

	return &authFixture{db: db, sessions: sessions, router: r}
}

func encodeState(redirectTo string) string {
	return base64.StdEncoding.EncodeToString([]byte(`{"redirectTo":"` + redirectTo + `"}`))
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	f := newAuthFixture(t, "login", "https://uclapi.com")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/login?redirect=/dashboard/my-group", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	loc := w.Header().Get("Location")
	for _, want := range []string{
		"https://uclapi.com/oauth/authorize",
		"client_id=client-id",
		"response_type=code",
		"scope=user%3Aread",
		"state=",
	} {
		if !strings.Contains(loc, want) {
			t.Errorf("Location %q missing %q", loc, want)
		}
	}
}

func TestCallback_FullLogin(t *testing.T) {
	provider := fakeProvider(t)
	defer provider.Close()
	f := newAuthFixture(t, "callback", provider.URL)

	url := "/api/auth/callback?code=abc123&state=" + encodeState("/dashboard/my-group")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 (body %s)", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "http://portal.example/dashboard/my-group" {
		t.Errorf("Location = %q, want the state's redirect target", loc)
	}

	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be httpOnly")
	}
	if cookie.Path != "/" {
		t.Errorf("cookie path = %q, want /", cookie.Path)
	}
	if cookie.MaxAge != 24*60*60 {
		t.Errorf("cookie max-age = %d, want 86400", cookie.MaxAge)
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie same-site = %v, want lax", cookie.SameSite)
	}

	// the senior-mentor group wins role derivation
	var user models.User
	if err := f.db.First(&user, "email = ?", "a@ucl.ac.uk").Error; err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if user.Role != models.RoleSeniorMentor {
		t.Errorf("Role = %s, want SENIOR_MENTOR", user.Role)
	}

	// the cookie's token verifies immediately
	view := f.sessions.VerifySession(httptest.NewRequest(http.MethodGet, "/", nil).Context(), cookie.Value)
	if view == nil {
		t.Fatal("cookie token did not verify")
	}
	if view.Email != "a@ucl.ac.uk" {
		t.Errorf("verified email = %q", view.Email)
	}
}

func TestCallback_NoStateDefaultsToDashboard(t *testing.T) {
	provider := fakeProvider(t)
	defer provider.Close()
	f := newAuthFixture(t, "nostate", provider.URL)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc123", nil))

	if loc := w.Header().Get("Location"); loc != "http://portal.example/dashboard" {
		t.Errorf("Location = %q, want the dashboard fallback", loc)
	}
}

func TestCallback_Denied(t *testing.T) {
	f := newAuthFixture(t, "denied", "https://uclapi.com")

	for _, url := range []string{
		"/api/auth/callback?result=denied",
		"/api/auth/callback", // no code at all
	} {
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "http://portal.example/login?error=access_denied" {
			t.Errorf("Location = %q, want access_denied redirect", loc)
		}
	}
}

func TestCallback_UpstreamFailure(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
	}))
	defer provider.Close()
	f := newAuthFixture(t, "upstream", provider.URL)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc123", nil))

	// provider detail never reaches the browser
	if loc := w.Header().Get("Location"); loc != "http://portal.example/login?error=auth_failed" {
		t.Errorf("Location = %q, want auth_failed redirect", loc)
	}
}

func TestLogout(t *testing.T) {
	provider := fakeProvider(t)
	defer provider.Close()
	f := newAuthFixture(t, "logout", provider.URL)

	// log in first
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc123", nil))
	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("login did not set a cookie")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: cookie.Value})
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "true") {
		t.Errorf("body = %s", w.Body.String())
	}
	if cleared := sessionCookie(w); cleared == nil || cleared.MaxAge >= 0 {
		t.Error("logout must clear the session cookie")
	}

	var count int64
	f.db.Model(&models.Session{}).Where("token = ?", cookie.Value).Count(&count)
	if count != 0 {
		t.Error("session row should be deleted")
	}

	// logging out again is fine
	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: cookie.Value})
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("repeat logout status = %d, want 200", w.Code)
	}
}

func TestDecodeRedirect(t *testing.T) {
	tests := []struct {
		name  string
		state string
		want  string
	}{
		{"empty", "", "/dashboard"},
		{"not base64", "%%%", "/dashboard"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("hello")), "/dashboard"},
		{"missing field", base64.StdEncoding.EncodeToString([]byte(`{}`)), "/dashboard"},
		{"absolute url rejected", encodeState("https://evil.example/"), "/dashboard"},
		{"valid", encodeState("/profile"), "/profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeRedirect(tt.state); got != tt.want {
				t.Errorf("decodeRedirect(%q) = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

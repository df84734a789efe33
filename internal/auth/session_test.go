package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"mentor-portal/internal/config"
	"mentor-portal/internal/database"
	"mentor-portal/internal/models"
	"mentor-portal/internal/rbac"
	"mentor-portal/internal/uclapi"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	// single connection keeps the shared in-memory db alive and
	// serializes writes under concurrent tests
	sqlDB.SetMaxOpenConns(1)
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testManager(t *testing.T, name string) *SessionManager {
	t.Helper()
	return NewSessionManager(testDB(t, name),
		config.JWTConfig{Secret: "test-secret", Issuer: "mentor-portal", ExpireHours: 24},
		config.OAuthConfig{
			MentorGroups:       []string{"programmingtutors2425"},
			SeniorMentorGroups: []string{"SPT2425"},
		})
}

func studentProfile(email, upi string) *uclapi.Profile {
	return &uclapi.Profile{
		Email:      email,
		GivenName:  "A",
		Surname:    "B",
		FullName:   "A B",
		Department: "Computer Science",
		StudentID:  "12345678",
		IsStudent:  true,
		UPI:        upi,
	}
}

func TestCreateSession_RoundTrip(t *testing.T) {
	m := testManager(t, "roundtrip")
	ctx := context.Background()

	profile := studentProfile("a@ucl.ac.uk", "ABCDE12")
	profile.Groups = []string{"SPT2425-x"}

	token, err := m.CreateSession(ctx, profile)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	user := m.VerifySession(ctx, token)
	if user == nil {
		t.Fatal("VerifySession() = nil for a freshly minted token")
	}
	if user.Email != "a@ucl.ac.uk" || user.UPI != "ABCDE12" {
		t.Errorf("unexpected identity: %+v", user)
	}
	if user.Role != models.RoleSeniorMentor {
		t.Errorf("Role = %s, want SENIOR_MENTOR", user.Role)
	}

	want := rbac.PermissionStrings(models.RoleSeniorMentor)
	if len(user.Permissions) != len(want) {
		t.Fatalf("Permissions = %v, want %v", user.Permissions, want)
	}
	for i := range want {
		if user.Permissions[i] != want[i] {
			t.Errorf("Permissions[%d] = %q, want %q", i, user.Permissions[i], want[i])
		}
	}
}

func TestCreateSession_ExistingUserKeepsRole(t *testing.T) {
	m := testManager(t, "existing")
	ctx := context.Background()

	if _, err := m.CreateSession(ctx, studentProfile("a@ucl.ac.uk", "ABCDE12")); err != nil {
		t.Fatalf("first CreateSession() error = %v", err)
	}

	// the same identity returning with mentor groups must not change
	// the stored role: derivation runs at first login only
	again := studentProfile("a@ucl.ac.uk", "ABCDE12")
	again.Groups = []string{"programmingtutors2425"}
	token, err := m.CreateSession(ctx, again)
	if err != nil {
		t.Fatalf("second CreateSession() error = %v", err)
	}

	user := m.VerifySession(ctx, token)
	if user == nil {
		t.Fatal("VerifySession() = nil")
	}
	if user.Role != models.RoleStudent {
		t.Errorf("Role = %s, want STUDENT (set at first login)", user.Role)
	}

	var count int64
	m.db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("user rows = %d, want 1", count)
	}
}

func TestCreateSession_ConcurrentFirstLogin(t *testing.T) {
	m := testManager(t, "race")
	ctx := context.Background()

	const logins = 8
	var wg sync.WaitGroup
	errs := make(chan error, logins)
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CreateSession(ctx, studentProfile("race@ucl.ac.uk", "RACE001"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("CreateSession() error = %v", err)
		}
	}

	var users int64
	m.db.Model(&models.User{}).Where("email = ?", "race@ucl.ac.uk").Count(&users)
	if users != 1 {
		t.Errorf("user rows = %d, want exactly 1", users)
	}
	var sessions int64
	m.db.Model(&models.Session{}).Count(&sessions)
	if sessions != logins {
		t.Errorf("session rows = %d, want %d", sessions, logins)
	}
}

func TestVerifySession_UnknownToken(t *testing.T) {
	m := testManager(t, "unknown")
	// well-formed but never persisted
	token, err := GenerateToken("test-secret", "mentor-portal", &models.User{
		ID: "ghost", Email: "g@ucl.ac.uk", Role: models.RoleStudent,
	}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if m.VerifySession(context.Background(), token) != nil {
		t.Error("VerifySession() should be nil for a token without a session row")
	}
}

func TestVerifySession_BadSignature(t *testing.T) {
	m := testManager(t, "badsig")
	token, err := GenerateToken("other-secret", "mentor-portal", &models.User{
		ID: "x", Email: "x@ucl.ac.uk", Role: models.RoleStudent,
	}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if m.VerifySession(context.Background(), token) != nil {
		t.Error("VerifySession() should reject a token signed with the wrong secret")
	}
	if m.VerifySession(context.Background(), "garbage") != nil {
		t.Error("VerifySession() should reject garbage")
	}
}

func TestVerifySession_Expired(t *testing.T) {
	m := testManager(t, "expired")
	ctx := context.Background()

	token, err := m.CreateSession(ctx, studentProfile("e@ucl.ac.uk", "EXP0001"))
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// push the row's expiry into the past
	if err := m.db.Model(&models.Session{}).Where("token = ?", token).
		Update("expires_at", time.Now().Add(-time.Second)).Error; err != nil {
		t.Fatalf("age session: %v", err)
	}
	if m.VerifySession(ctx, token) != nil {
		t.Error("VerifySession() should be nil for an expired session")
	}
}

func TestSessionExpiredBoundary(t *testing.T) {
	now := time.Now()
	s := &models.Session{ExpiresAt: now}
	if !s.Expired(now) {
		t.Error("expiry exactly at now must count as expired")
	}
	if s.Expired(now.Add(-time.Nanosecond)) {
		t.Error("session should be live just before expiry")
	}
}

func TestDeleteSession(t *testing.T) {
	m := testManager(t, "delete")
	ctx := context.Background()

	token, err := m.CreateSession(ctx, studentProfile("d@ucl.ac.uk", "DEL0001"))
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	m.DeleteSession(ctx, token)
	if m.VerifySession(ctx, token) != nil {
		t.Error("VerifySession() should be nil after deletion")
	}

	// idempotent: deleting again (or a token that never existed) is fine
	m.DeleteSession(ctx, token)
	m.DeleteSession(ctx, "never-existed")
}

func TestDeriveRole(t *testing.T) {
	m := testManager(t, "derive")

	tests := []struct {
		name      string
		groups    []string
		isStudent bool
		want      models.Role
	}{
		{"senior mentor group", []string{"SPT2425-foo"}, false, models.RoleSeniorMentor},
		{"mentor group", []string{"programmingtutors2425"}, false, models.RoleMentor},
		{"senior beats mentor", []string{"SPT2425-foo", "programmingtutors2425"}, false, models.RoleSeniorMentor},
		{"case insensitive", []string{"spt2425-BAR"}, false, models.RoleSeniorMentor},
		{"student flag", nil, true, models.RoleStudent},
		{"no groups no flag", nil, false, models.RoleStudent},
		{"unrelated groups", []string{"chess-club"}, true, models.RoleStudent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &uclapi.Profile{Groups: tt.groups, IsStudent: tt.isStudent}
			if got := m.deriveRole(p); got != tt.want {
				t.Errorf("deriveRole(%v) = %s, want %s", tt.groups, got, tt.want)
			}
		})
	}
}

func TestSurnameFallback(t *testing.T) {
	tests := []struct {
		profile uclapi.Profile
		want    string
	}{
		{uclapi.Profile{Surname: "Smith"}, "Smith"},
		{uclapi.Profile{FullName: "Ada King Lovelace"}, "Lovelace"},
		{uclapi.Profile{}, "Unknown"},
	}
	for _, tt := range tests {
		if got := surname(&tt.profile); got != tt.want {
			t.Errorf("surname(%+v) = %q, want %q", tt.profile, got, tt.want)
		}
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"mentor-portal/internal/config"
	"mentor-portal/internal/database"
	"mentor-portal/internal/models"
	"mentor-portal/internal/rbac"
	"mentor-portal/internal/uclapi"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuthUser is the verified-session view handed to route handlers:
// identity fields, role and the role's flattened permissions.
type AuthUser struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	GivenName   string      `json:"given_name"`
	FamilyName  string      `json:"family_name"`
	FullName    string      `json:"full_name"`
	Department  string      `json:"department"`
	StudentID   string      `json:"student_id,omitempty"`
	StaffID     string      `json:"staff_id,omitempty"`
	IsStudent   bool        `json:"is_student"`
	IsStaff     bool        `json:"is_staff"`
	UPI         string      `json:"upi"`
	Role        models.Role `json:"role"`
	Permissions []string    `json:"permissions"`
}

// HasPermission reports whether the user's role grants the permission.
func (u *AuthUser) HasPermission(p rbac.Permission) bool {
	return rbac.HasPermission(u.Role, p)
}

// SessionManager orchestrates login (user upsert, token mint, session
// persist) and per-request verification. It holds no cross-request
// state; everything lives in the database.
type SessionManager struct {
	db                 *gorm.DB
	secret             string
	issuer             string
	ttl                time.Duration
	mentorGroups       []string
	seniorMentorGroups []string
}

func NewSessionManager(db *gorm.DB, jwtCfg config.JWTConfig, oauthCfg config.OAuthConfig) *SessionManager {
	ttlHours := jwtCfg.ExpireHours
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &SessionManager{
		db:                 db,
		secret:             jwtCfg.Secret,
		issuer:             jwtCfg.Issuer,
		ttl:                time.Duration(ttlHours) * time.Hour,
		mentorGroups:       oauthCfg.MentorGroups,
		seniorMentorGroups: oauthCfg.SeniorMentorGroups,
	}
}

// CreateSession logs a profile in: the user row is created on first
// login, a token is minted and a session row persisted. A transient
// persistence failure gets one retry after resetting the pool; a
// second failure propagates.
func (m *SessionManager) CreateSession(ctx context.Context, profile *uclapi.Profile) (string, error) {
	token, err := m.createSession(ctx, profile)
	if err == nil {
		return token, nil
	}

	log.Printf("auth: create session failed, resetting pool and retrying once: %v", err)
	if rerr := database.Reset(m.db); rerr != nil {
		log.Printf("auth: pool reset failed: %v", rerr)
	}

	token, err = m.createSession(ctx, profile)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func (m *SessionManager) createSession(ctx context.Context, profile *uclapi.Profile) (string, error) {
	user, err := m.findOrCreateUser(ctx, profile)
	if err != nil {
		return "", err
	}

	token, err := GenerateToken(m.secret, m.issuer, user, m.ttl)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	session := models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(m.ttl),
	}
	if err := m.db.WithContext(ctx).Create(&session).Error; err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}
	return token, nil
}

// findOrCreateUser upserts the user by email. The unique index on
// email plus ON CONFLICT DO NOTHING keeps concurrent first logins for
// the same identity down to a single row: the loser of the race simply
// re-reads the winner's row.
func (m *SessionManager) findOrCreateUser(ctx context.Context, profile *uclapi.Profile) (*models.User, error) {
	var user models.User
	err := m.db.WithContext(ctx).Where("email = ?", profile.Email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	user = models.User{
		Email:      profile.Email,
		UPI:        profile.UPI,
		FirstName:  profile.GivenName,
		LastName:   surname(profile),
		Department: profile.Department,
		StudentID:  optional(profile.StudentID),
		StaffID:    optional(profile.StaffID),
		Role:       m.deriveRole(profile),
	}
	res := m.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
	if res.Error != nil {
		return nil, fmt.Errorf("create user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// lost a concurrent first-login race
		if err := m.db.WithContext(ctx).Where("email = ?", profile.Email).First(&user).Error; err != nil {
			return nil, fmt.Errorf("reload user after conflict: %w", err)
		}
	}
	return &user, nil
}

// VerifySession resolves a token to its user view, or nil when the
// session is missing, expired or the token does not verify. Permission
// resolution runs on every call so catalog or role changes apply on
// the next request.
func (m *SessionManager) VerifySession(ctx context.Context, token string) *AuthUser {
	if token == "" {
		return nil
	}
	if _, err := ParseToken(m.secret, token); err != nil {
		return nil
	}

	var session models.Session
	err := m.db.WithContext(ctx).Preload("User").
		Where("token = ?", token).First(&session).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("auth: session lookup failed: %v", err)
		}
		return nil
	}
	if session.Expired(time.Now()) {
		return nil
	}

	u := session.User
	return &AuthUser{
		ID:          u.ID,
		Email:       u.Email,
		GivenName:   u.FirstName,
		FamilyName:  u.LastName,
		FullName:    u.FirstName + " " + u.LastName,
		Department:  u.Department,
		StudentID:   deref(u.StudentID),
		StaffID:     deref(u.StaffID),
		IsStudent:   u.Role == models.RoleStudent,
		IsStaff:     u.Role != models.RoleStudent,
		UPI:         u.UPI,
		Role:        u.Role,
		Permissions: rbac.PermissionStrings(u.Role),
	}
}

// DeleteSession removes the session row. Idempotent: a missing token
// is not an error, and persistence failures are logged and swallowed
// so logout never fails visibly.
func (m *SessionManager) DeleteSession(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := m.db.WithContext(ctx).Where("token = ?", token).
		Delete(&models.Session{}).Error; err != nil {
		log.Printf("auth: session deletion failed: %v", err)
	}
}

// deriveRole maps the profile's group memberships to an initial role.
// Senior-mentor groups beat mentor groups; everything else is a
// student. Admin tiers are never derived, they require manual
// elevation.
func (m *SessionManager) deriveRole(profile *uclapi.Profile) models.Role {
	if matchesGroup(profile.Groups, m.seniorMentorGroups) {
		return models.RoleSeniorMentor
	}
	if matchesGroup(profile.Groups, m.mentorGroups) {
		return models.RoleMentor
	}
	return models.RoleStudent
}

// matchesGroup reports whether any membership contains any of the
// configured names, case-insensitively.
func matchesGroup(memberships, names []string) bool {
	for _, g := range memberships {
		lg := strings.ToLower(g)
		for _, name := range names {
			if strings.Contains(lg, strings.ToLower(name)) {
				return true
			}
		}
	}
	return false
}

func surname(profile *uclapi.Profile) string {
	if profile.Surname != "" {
		return profile.Surname
	}
	if parts := strings.Fields(profile.FullName); len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return "Unknown"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

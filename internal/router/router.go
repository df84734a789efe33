package router

import (
	"mentor-portal/internal/auth"
	"mentor-portal/internal/config"
	"mentor-portal/internal/handler"
	"mentor-portal/internal/middleware"
	"mentor-portal/internal/models"
	"mentor-portal/internal/rbac"
	"mentor-portal/internal/uclapi"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// adminRoles is the role set admitted to the admin console. The
// senior-mentor tier manages groups without holding the admin
// permissions.
var adminRoles = []models.Role{
	models.RoleAdmin,
	models.RoleSeniorMentor,
	models.RoleSuperadmin,
}

// SetupRouter configures the Gin engine and the API surface.
func SetupRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	sessions := auth.NewSessionManager(db, cfg.JWT, cfg.OAuth)
	oauthClient := uclapi.NewClient(cfg.OAuth)

	api := r.Group("/api")

	// OAuth flow (no session required)
	authHandler := handler.NewAuthHandler(sessions, oauthClient,
		cfg.Server.BaseURL, cfg.Server.Mode == gin.ReleaseMode, cfg.JWT.ExpireHours)
	api.GET("/auth/login", authHandler.Login)
	api.GET("/auth/callback", authHandler.Callback)
	api.POST("/auth/logout", authHandler.Logout)

	// onboarding status reads as not-onboarded when anonymous
	onboardingHandler := handler.NewOnboardingHandler(db, sessions)
	api.GET("/onboarding/status", onboardingHandler.Status)

	protected := api.Group("")
	protected.Use(middleware.RequireSession(sessions))

	protected.GET("/user", handler.GetMe)

	avatarHandler := handler.NewAvatarHandler(db, cfg.App.ProfilePicsDir)
	protected.GET("/user/profile-pic/:upi", avatarHandler.Get)

	groupHandler := handler.NewGroupHandler(db)
	protected.GET("/user/group",
		middleware.RequirePermission(db, rbac.UserRead), groupHandler.GetMyGroup)
	protected.POST("/user/group", groupHandler.UpdateMyGroupInfo)

	protected.POST("/onboarding",
		middleware.RequirePermission(db, rbac.UserUpdate), onboardingHandler.Submit)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAnyRole(db, adminRoles...))

	adminHandler := handler.NewAdminHandler(db)
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/groups", adminHandler.ListGroups)
	admin.POST("/groups", adminHandler.CreateGroup)
	admin.PUT("/groups", adminHandler.UpdateGroup)
	admin.DELETE("/groups", adminHandler.DeleteGroup)
	admin.GET("/export",
		middleware.RequirePermission(db, rbac.AdminRead), adminHandler.ExportXLSX)

	return r
}

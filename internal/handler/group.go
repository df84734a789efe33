package handler

import (
	"errors"
	"net/http"

	"mentor-portal/internal/middleware"
	"mentor-portal/internal/models"
	"mentor-portal/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GroupHandler serves the caller's own mentorship group.
type GroupHandler struct {
	DB *gorm.DB
}

func NewGroupHandler(db *gorm.DB) *GroupHandler {
	return &GroupHandler{DB: db}
}

// GetMyGroup returns the group the caller belongs to, checking the
// mentor side first, then the mentee side. `?all=1` lists every group
// for the admin UI.
func (h *GroupHandler) GetMyGroup(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if c.Query("all") == "1" {
		var groups []models.Group
		if err := h.DB.Preload("Mentor").Preload("Mentees").Find(&groups).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, "Failed to load groups")
			return
		}
		util.OK(c, gin.H{"groups": groups})
		return
	}

	var group models.Group
	err := h.DB.Preload("Mentor").Preload("Mentees").
		Where("mentor_id = ?", user.ID).First(&group).Error
	if err == nil {
		util.OK(c, gin.H{"group": &group})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		util.Error(c, http.StatusInternalServerError, "Failed to load group")
		return
	}

	// not a mentor anywhere; look up mentee membership
	var me models.User
	if err := h.DB.First(&me, "id = ?", user.ID).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to load group")
		return
	}
	if me.GroupID == nil {
		util.OK(c, gin.H{"group": nil})
		return
	}
	if err := h.DB.Preload("Mentor").Preload("Mentees").
		First(&group, "id = ?", *me.GroupID).Error; err != nil {
		util.OK(c, gin.H{"group": nil})
		return
	}
	util.OK(c, gin.H{"group": &group})
}

type groupInfoReq struct {
	Info string `json:"info"`
}

// UpdateMyGroupInfo lets the mentor of a group edit its info text.
// Non-mentors get a 403.
func (h *GroupHandler) UpdateMyGroupInfo(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var group models.Group
	err := h.DB.Where("mentor_id = ?", user.ID).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		middleware.RecordDenial(c, h.DB, user, "not a mentor of any group")
		util.Error(c, http.StatusForbidden, "Forbidden")
		return
	}
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to load group")
		return
	}

	var req groupInfoReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.DB.Model(&group).Update("info", req.Info).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to update group")
		return
	}
	util.OK(c, gin.H{"success": true})
}

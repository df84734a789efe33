package handler

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"mentor-portal/internal/models"
	"mentor-portal/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// AdminHandler backs the admin console: user listing, group CRUD and
// the roster export.
type AdminHandler struct {
	DB *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{DB: db}
}

type adminUserView struct {
	ID        string      `json:"id"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
}

// ListUsers returns every user, ordered by role tier then surname.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := h.DB.Find(&users).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to load users")
		return
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].Role != users[j].Role {
			return users[i].Role.Order() < users[j].Role.Order()
		}
		return users[i].LastName < users[j].LastName
	})

	out := make([]adminUserView, 0, len(users))
	for _, u := range users {
		out = append(out, adminUserView{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			Role:      u.Role,
		})
	}
	util.OK(c, gin.H{"users": out})
}

// ListGroups returns all groups with members, ordered by group number.
func (h *AdminHandler) ListGroups(c *gin.Context) {
	var groups []models.Group
	if err := h.DB.Preload("Mentor").Preload("Mentees").
		Order("group_number asc").Find(&groups).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to load groups")
		return
	}
	util.OK(c, gin.H{"groups": groups})
}

// CreateGroup creates an empty group with the lowest unused number.
func (h *AdminHandler) CreateGroup(c *gin.Context) {
	var existing []models.Group
	if err := h.DB.Select("group_number").Find(&existing).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to load groups")
		return
	}

	used := make(map[int]bool, len(existing))
	for _, g := range existing {
		used[g.GroupNumber] = true
	}
	number := 1
	for used[number] {
		number++
	}

	group := models.Group{GroupNumber: number}
	if err := h.DB.Create(&group).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to create group")
		return
	}
	util.OK(c, gin.H{"group": &group})
}

type updateGroupReq struct {
	ID        string   `json:"id" binding:"required"`
	MentorID  *string  `json:"mentorId"`
	MenteeIDs []string `json:"menteeIds"`
	Info      string   `json:"info"`
}

// UpdateGroup replaces a group's mentor, mentee set and info in one
// transaction.
func (h *AdminHandler) UpdateGroup(c *gin.Context) {
	var req updateGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.First(&group, "id = ?", req.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(&group).Updates(map[string]interface{}{
			"mentor_id": req.MentorID,
			"info":      req.Info,
		}).Error; err != nil {
			return err
		}
		// replace the mentee set
		if err := tx.Model(&models.User{}).Where("group_id = ?", group.ID).
			Update("group_id", nil).Error; err != nil {
			return err
		}
		if len(req.MenteeIDs) > 0 {
			if err := tx.Model(&models.User{}).Where("id IN ?", req.MenteeIDs).
				Update("group_id", group.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to update group")
		return
	}

	var group models.Group
	if err := h.DB.Preload("Mentor").Preload("Mentees").
		First(&group, "id = ?", req.ID).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to load group")
		return
	}
	util.OK(c, gin.H{"group": &group})
}

type deleteGroupReq struct {
	ID string `json:"id" binding:"required"`
}

// DeleteGroup removes a group, releasing its mentees.
func (h *AdminHandler) DeleteGroup(c *gin.Context) {
	var req deleteGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("group_id = ?", req.ID).
			Update("group_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Group{}, "id = ?", req.ID).Error
	})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to delete group")
		return
	}
	util.OK(c, gin.H{"success": true})
}

// ExportXLSX streams the user and group rosters as a workbook.
func (h *AdminHandler) ExportXLSX(c *gin.Context) {
	var users []models.User
	if err := h.DB.Order("role asc, last_name asc").Find(&users).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to load users")
		return
	}
	var groups []models.Group
	if err := h.DB.Preload("Mentor").Preload("Mentees").
		Order("group_number asc").Find(&groups).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to load groups")
		return
	}

	f := excelize.NewFile()

	usersSheet := "Users"
	index, err := f.NewSheet(usersSheet)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to build export")
		return
	}
	f.SetActiveSheet(index)

	headers := []string{"First name", "Last name", "Email", "UPI", "Department", "Role"}
	for i, head := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(usersSheet, cell, head)
	}
	for idx, u := range users {
		row := idx + 2
		f.SetCellValue(usersSheet, fmt.Sprintf("A%d", row), u.FirstName)
		f.SetCellValue(usersSheet, fmt.Sprintf("B%d", row), u.LastName)
		f.SetCellValue(usersSheet, fmt.Sprintf("C%d", row), u.Email)
		f.SetCellValue(usersSheet, fmt.Sprintf("D%d", row), u.UPI)
		f.SetCellValue(usersSheet, fmt.Sprintf("E%d", row), u.Department)
		f.SetCellValue(usersSheet, fmt.Sprintf("F%d", row), string(u.Role))
	}
	f.SetColWidth(usersSheet, "A", "B", 15)
	f.SetColWidth(usersSheet, "C", "C", 30)
	f.SetColWidth(usersSheet, "D", "F", 15)

	groupsSheet := "Groups"
	if _, err := f.NewSheet(groupsSheet); err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to build export")
		return
	}
	for i, head := range []string{"Group", "Mentor", "Mentees", "Info"} {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(groupsSheet, cell, head)
	}
	for idx, g := range groups {
		row := idx + 2
		mentor := ""
		if g.Mentor != nil {
			mentor = g.Mentor.FirstName + " " + g.Mentor.LastName
		}
		mentees := ""
		for i, m := range g.Mentees {
			if i > 0 {
				mentees += ", "
			}
			mentees += m.FirstName + " " + m.LastName
		}
		f.SetCellValue(groupsSheet, fmt.Sprintf("A%d", row), g.GroupNumber)
		f.SetCellValue(groupsSheet, fmt.Sprintf("B%d", row), mentor)
		f.SetCellValue(groupsSheet, fmt.Sprintf("C%d", row), mentees)
		f.SetCellValue(groupsSheet, fmt.Sprintf("D%d", row), g.Info)
	}
	f.SetColWidth(groupsSheet, "A", "A", 8)
	f.SetColWidth(groupsSheet, "B", "B", 20)
	f.SetColWidth(groupsSheet, "C", "C", 50)
	f.SetColWidth(groupsSheet, "D", "D", 40)

	f.DeleteSheet("Sheet1")

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"mentorship_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to write export")
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"mentor-portal/internal/auth"
	"mentor-portal/internal/middleware"
	"mentor-portal/internal/models"
	"mentor-portal/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// OnboardingHandler records the onboarding questionnaire and computes
// the skill score used for group matching.
type OnboardingHandler struct {
	DB       *gorm.DB
	Sessions *auth.SessionManager
}

func NewOnboardingHandler(db *gorm.DB, sessions *auth.SessionManager) *OnboardingHandler {
	return &OnboardingHandler{DB: db, Sessions: sessions}
}

type onboardingReq struct {
	Name            string            `json:"name"`
	DegreeProgramme string            `json:"degreeProgramme"`
	Gender          string            `json:"gender"`
	StudiedCS       bool              `json:"studiedCS"`
	YearsExperience int               `json:"yearsExperience"`
	QuizAnswers     map[string]string `json:"quizAnswers"`
}

// quizKey is the fixed answer key for the screening quiz.
var quizKey = []struct {
	ID     string
	Answer string
}{
	{"q1", "4"},
	{"q2", "var_1"},
}

// skillScore: +10 per correct quiz answer, +5 per year of experience,
// +10 for prior CS study.
func skillScore(req *onboardingReq) int {
	score := 0
	for _, q := range quizKey {
		if req.QuizAnswers[q.ID] == q.Answer {
			score += 10
		}
	}
	score += req.YearsExperience * 5
	if req.StudiedCS {
		score += 10
	}
	return score
}

// Submit stores (or re-stores) the caller's onboarding answers.
func (h *OnboardingHandler) Submit(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req onboardingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := util.ValidateName(req.Name); err != nil {
		util.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := util.ValidateYearsExperience(req.YearsExperience); err != nil {
		util.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	answers, err := json.Marshal(req.QuizAnswers)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "Invalid quiz answers")
		return
	}
	score := skillScore(&req)

	// upsert: a retried onboarding overwrites the previous submission
	var existing models.Onboarding
	err = h.DB.Where("user_id = ?", user.ID).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"name":             req.Name,
			"degree_programme": req.DegreeProgramme,
			"gender":           req.Gender,
			"studied_cs":       req.StudiedCS,
			"years_experience": req.YearsExperience,
			"quiz_answers":     string(answers),
			"skill_score":      score,
		}
		if err := h.DB.Model(&existing).Updates(updates).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, "Failed to save onboarding")
			return
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.Onboarding{
			UserID:          user.ID,
			Name:            req.Name,
			DegreeProgramme: req.DegreeProgramme,
			Gender:          req.Gender,
			StudiedCS:       req.StudiedCS,
			YearsExperience: req.YearsExperience,
			QuizAnswers:     string(answers),
			SkillScore:      score,
		}
		if err := h.DB.Create(&row).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, "Failed to save onboarding")
			return
		}
	default:
		util.Error(c, http.StatusInternalServerError, "Failed to save onboarding")
		return
	}

	util.OK(c, gin.H{"success": true, "skillScore": score})
}

// Status reports whether the caller has completed onboarding. Public:
// an anonymous or stale session simply reads as not onboarded.
func (h *OnboardingHandler) Status(c *gin.Context) {
	token, err := c.Cookie(middleware.SessionCookie)
	if err != nil || token == "" {
		util.OK(c, gin.H{"onboarded": false})
		return
	}
	user := h.Sessions.VerifySession(c.Request.Context(), token)
	if user == nil {
		util.OK(c, gin.H{"onboarded": false})
		return
	}

	var count int64
	if err := h.DB.Model(&models.Onboarding{}).
		Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		util.OK(c, gin.H{"onboarded": false})
		return
	}
	util.OK(c, gin.H{"onboarded": count > 0})
}

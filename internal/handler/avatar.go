package handler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mentor-portal/internal/models"
	"mentor-portal/internal/util"

	"github.com/gin-gonic/gin"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gorm.io/gorm"
)

// AvatarHandler serves profile pictures: an uploaded file when one
// exists, otherwise a generated initials avatar cached to disk.
type AvatarHandler struct {
	DB  *gorm.DB
	Dir string
}

func NewAvatarHandler(db *gorm.DB, dir string) *AvatarHandler {
	return &AvatarHandler{DB: db, Dir: dir}
}

var avatarExtensions = []struct {
	ext         string
	contentType string
}{
	{"webp", "image/webp"},
	{"png", "image/png"},
	{"jpg", "image/jpeg"},
	{"jpeg", "image/jpeg"},
}

// Get returns the picture for a UPI with conditional-request support.
func (h *AvatarHandler) Get(c *gin.Context) {
	upi := c.Param("upi")
	if upi == "" || strings.ContainsAny(upi, "/\\") || strings.Contains(upi, "..") {
		util.Error(c, http.StatusBadRequest, "UPI is required")
		return
	}

	for _, cand := range avatarExtensions {
		path := filepath.Join(h.Dir, upi+"."+cand.ext)
		if info, err := os.Stat(path); err == nil {
			h.serveFile(c, path, cand.contentType, info)
			return
		}
	}

	// nothing stored; render an initials avatar and cache it
	var user models.User
	err := h.DB.Select("first_name", "last_name").Where("upi = ?", upi).First(&user).Error
	initials := strings.ToUpper(upiPrefix(upi))
	if err == nil && user.FirstName != "" {
		initials = strings.ToUpper(firstRune(user.FirstName) + firstRune(user.LastName))
	}

	buf, err := renderInitialsAvatar(initials)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to generate avatar")
		return
	}

	if err := os.MkdirAll(h.Dir, 0o755); err == nil {
		_ = os.WriteFile(filepath.Join(h.Dir, upi+".png"), buf, 0o644)
	}

	c.Header("Cache-Control", "private, max-age=3600, must-revalidate")
	c.Data(http.StatusOK, "image/png", buf)
}

func (h *AvatarHandler) serveFile(c *gin.Context, path, contentType string, info os.FileInfo) {
	etag := fmt.Sprintf("\"%d-%d\"", info.ModTime().UnixMilli(), info.Size())
	lastModified := info.ModTime().UTC().Format(http.TimeFormat)

	if c.GetHeader("If-None-Match") == etag || c.GetHeader("If-Modified-Since") == lastModified {
		c.Header("ETag", etag)
		c.Header("Last-Modified", lastModified)
		c.Header("Cache-Control", "private, max-age=3600, must-revalidate")
		c.Status(http.StatusNotModified)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "Failed to read avatar")
		return
	}
	c.Header("ETag", etag)
	c.Header("Last-Modified", lastModified)
	c.Header("Cache-Control", "private, max-age=3600, must-revalidate")
	c.Data(http.StatusOK, contentType, data)
}

// renderInitialsAvatar draws the initials on the portal's dark blue at
// a small size, then upscales to 256x256.
func renderInitialsAvatar(initials string) ([]byte, error) {
	const size = 256
	background := color.RGBA{R: 0x00, G: 0x22, B: 0x48, A: 0xff}

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, initials).Ceil()
	small := image.NewRGBA(image.Rect(0, 0, textWidth+8, 20))
	xdraw.Draw(small, small.Bounds(), image.NewUniform(background), image.Point{}, xdraw.Src)

	drawer := font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(4, 14),
	}
	drawer.DrawString(initials)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), small, small.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

func upiPrefix(upi string) string {
	if len(upi) >= 2 {
		return upi[:2]
	}
	return upi
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-service/internal/middleware"
	"social-service/internal/storage"
)

const (
	defaultMaxUpload = 50 << 20
	presignExpiry    = 15 * time.Minute
	maxCaptionLen    = 50
)

var unsafeCaption = regexp.MustCompile(`[^a-zA-Z0-9._\-\s]`)

// MediaHandler uploads short videos and issues direct upload URLs.
type MediaHandler struct {
	uploader storage.Uploader
	maxBytes int64
	now      func() time.Time
	newID    func() string
}

// NewMediaHandler constructs a MediaHandler. uploader may be nil when object
// storage is not configured.
func NewMediaHandler(uploader storage.Uploader, maxBytes int64) *MediaHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	return &MediaHandler{
		uploader: uploader,
		maxBytes: maxBytes,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// UploadVideo handles POST /api/media/videos with a multipart "video" file.
func (h *MediaHandler) UploadVideo(c *gin.Context) {
	if h.uploader == nil {
		respondError(c, http.StatusServiceUnavailable, storage.ErrDisabled.Error())
		return
	}

	// multipart overhead counts against the limit too
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	file, err := c.FormFile("video")
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, "File too large.")
		return
	case err != nil:
		respondError(c, http.StatusBadRequest, "No video file uploaded.")
		return
	case file.Size > h.maxBytes:
		respondError(c, http.StatusRequestEntityTooLarge, "File too large.")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") {
		respondError(c, http.StatusBadRequest, "Only video files are allowed.")
		return
	}

	identity := middleware.IdentityFrom(c)
	caption := c.DefaultPostForm("caption", "Untitled Short")
	userID := c.PostForm("userId")
	if userID == "" && identity.HasUser() {
		userID = strconv.Itoa(identity.UserID)
	}
	userID = firstOr(userID, "anonymous")
	username := firstOr(firstOr(c.PostForm("username"), identity.Username), "Anonymous User")

	now := h.now().UTC()
	key := fmt.Sprintf("videos/shorts/%s/%d-%s", userID, now.UnixMilli(), safeCaption(caption))

	body, err := file.Open()
	if err != nil {
		respondErr(c, err, "Upload failed")
		return
	}
	defer body.Close()

	url, err := h.uploader.Upload(c.Request.Context(), storage.Object{
		Key:         key,
		ContentType: contentType,
		Size:        file.Size,
		Body:        body,
		Metadata: map[string]string{
			"caption":    caption,
			"userId":     userID,
			"username":   username,
			"uploadedAt": now.Format(time.RFC3339),
			"type":       "shorts",
		},
	})
	if err != nil {
		respondErr(c, err, "Upload failed")
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Video uploaded successfully!", "key": key, "url": url})
}

// PresignUpload handles POST /api/media/upload-url and returns a presigned
// PUT URL for an image or video.
func (h *MediaHandler) PresignUpload(c *gin.Context) {
	if h.uploader == nil {
		respondError(c, http.StatusServiceUnavailable, storage.ErrDisabled.Error())
		return
	}
	var req struct {
		Filename    string `json:"filename"`
		ContentType string `json:"contentType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	if !strings.HasPrefix(req.ContentType, "image/") && !strings.HasPrefix(req.ContentType, "video/") {
		respondError(c, http.StatusBadRequest, "contentType must be an image or video type")
		return
	}

	key := fmt.Sprintf("uploads/%d/%s%s", c.GetInt("userID"), h.newID(), strings.ToLower(path.Ext(req.Filename)))
	url, err := h.uploader.PresignPut(c.Request.Context(), key, req.ContentType, presignExpiry)
	if err != nil {
		respondErr(c, err, "could not create upload url")
		return
	}
	respond(c, http.StatusOK, gin.H{
		"uploadUrl": url,
		"key":       key,
		"expiresAt": h.now().UTC().Add(presignExpiry),
	})
}

func safeCaption(caption string) string {
	safe := unsafeCaption.ReplaceAllString(caption, "_")
	if len(safe) > maxCaptionLen {
		safe = safe[:maxCaptionLen]
	}
	return safe
}

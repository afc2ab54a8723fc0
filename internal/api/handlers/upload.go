package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"looplib/internal/api/middleware"
	"looplib/internal/ingest"
)

type UploadHandler struct {
	uploader *ingest.Uploader
}

func NewUploadHandler(u *ingest.Uploader) *UploadHandler {
	return &UploadHandler{uploader: u}
}

// Analyze reads the uploaded file's tags. Nothing is stored.
func (h *UploadHandler) Analyze(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if err := h.uploader.Limits().Validate(fileHeader); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.uploader.Analyze(fileHeader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to open file"})
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Upload stamps the confirmed form values into the file and stores it in the
// caller's library.
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	var form ingest.Form
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid form"})
		return
	}

	uid := middleware.UserID(c)
	res, err := h.uploader.Store(c.Request.Context(), uid, fileHeader, form)
	switch {
	case errors.Is(err, ingest.ErrInvalidUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		slog.Error("upload failed", "uid", uid, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Storage upload failed"})
		return
	}

	c.JSON(http.StatusCreated, res)
}

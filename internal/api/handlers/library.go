package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"looplib/internal/api/middleware"
	"looplib/internal/library"
	"looplib/internal/storage"
)

// LibraryHandler lists, streams and deletes a user's audio files.
type LibraryHandler struct {
	library *library.Service
}

func NewLibraryHandler(lib *library.Service) *LibraryHandler {
	return &LibraryHandler{library: lib}
}

// ListOwnFiles backs the profile view.
func (h *LibraryHandler) ListOwnFiles(c *gin.Context) {
	h.list(c, middleware.UserID(c))
}

// ListUserFiles backs the per-user library view.
func (h *LibraryHandler) ListUserFiles(c *gin.Context) {
	h.list(c, c.Param("uid"))
}

func (h *LibraryHandler) list(c *gin.Context, uid string) {
	records, err := h.library.List(c.Request.Context(), uid)
	if err != nil {
		slog.Error("failed to list files", "uid", uid, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to list files"})
		return
	}
	if records == nil {
		records = []library.Record{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": records,
		"meta": gin.H{"total": len(records)},
	})
}

func (h *LibraryHandler) DeleteOwnFile(c *gin.Context) {
	h.delete(c, middleware.UserID(c))
}

func (h *LibraryHandler) DeleteUserFile(c *gin.Context) {
	h.delete(c, c.Param("uid"))
}

func (h *LibraryHandler) delete(c *gin.Context, uid string) {
	name := c.Param("name")
	err := h.library.Delete(c.Request.Context(), uid, name)
	switch {
	case errors.Is(err, library.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file name"})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
	case err != nil:
		// The file is already hidden from listings; report the backend failure.
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to delete file"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "File deleted", "name": name})
	}
}

// StreamFile proxies an audio object, with range support when the backend
// body can seek.
func (h *LibraryHandler) StreamFile(c *gin.Context) {
	name := c.Param("name")
	obj, err := h.library.Open(c.Request.Context(), c.Param("uid"), name)
	switch {
	case errors.Is(err, library.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file name"})
		return
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Audio file missing from storage"})
		return
	case err != nil:
		slog.Error("failed to open file", "name", name, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Storage error"})
		return
	}

	// Always close the storage stream to prevent memory/connection leaks
	defer obj.Body.Close()
	if obj.ContentType != "" {
		c.Header("Content-Type", obj.ContentType)
	}
	if seeker, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, name, obj.LastModified, seeker)
		return
	}

	extraHeaders := map[string]string{
		"Cache-Control": "private, max-age=3600",
		"Accept-Ranges": "none",
	}
	c.DataFromReader(http.StatusOK, obj.ContentLength, obj.ContentType, obj.Body, extraHeaders)
}

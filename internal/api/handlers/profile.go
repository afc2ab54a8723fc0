package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"looplib/internal/api/middleware"
	"looplib/internal/auth"
	"looplib/internal/models"
	"looplib/internal/profile"
)

// ProfileHandler serves the signed-in user's account and profile document,
// and the public overview of other users.
type ProfileHandler struct {
	provider *auth.Provider
	profiles profile.Store
}

func NewProfileHandler(provider *auth.Provider, profiles profile.Store) *ProfileHandler {
	return &ProfileHandler{provider: provider, profiles: profiles}
}

type userOverview struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	uid := middleware.UserID(c)

	acct, err := h.provider.Account(c.Request.Context(), uid)
	if err != nil {
		c.JSON(authStatus(err), gin.H{"error": "Account not found"})
		return
	}

	doc, err := h.profiles.Get(c.Request.Context(), uid)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		slog.Error("failed to load profile", "uid", uid, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": acct, "profile": doc})
}

type updateProfileRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	acct, err := h.provider.UpdateProfile(c.Request.Context(), middleware.UserID(c), req.DisplayName)
	if err != nil {
		c.JSON(authStatus(err), gin.H{"error": errorCode(err), "message": auth.FormMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acct})
}

// GetUser returns the overview of any user. The profile document is the
// source; an account without one still shows its display name.
func (h *ProfileHandler) GetUser(c *gin.Context) {
	uid := c.Param("uid")
	ctx := c.Request.Context()

	doc, err := h.profiles.Get(ctx, uid)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, overviewOf(doc))
		return
	case !errors.Is(err, profile.ErrNotFound):
		slog.Error("failed to load profile", "uid", uid, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load profile"})
		return
	}

	acct, err := h.provider.Account(ctx, uid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, userOverview{UID: acct.UID, Username: acct.DisplayName, Email: acct.Email})
}

func overviewOf(p *models.Profile) userOverview {
	return userOverview{UID: p.UID, Username: p.Username, Email: p.Email}
}

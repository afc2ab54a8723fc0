package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"looplib/internal/api/middleware"
	"looplib/internal/auth"
)

type AuthHandler struct {
	provider *auth.Provider
}

func NewAuthHandler(provider *auth.Provider) *AuthHandler {
	return &AuthHandler{provider: provider}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and its profile, then signs the user in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	sess, err := h.provider.SignUp(c.Request.Context(), auth.SignUpInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		status := authStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("registration failed", "error", err)
		}
		c.JSON(status, gin.H{"error": errorCode(err), "message": auth.FormMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, sess)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	sess, err := h.provider.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status := authStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("login failed", "error", err)
		} else {
			slog.Warn("login rejected", "code", auth.CodeOf(err), "ip", c.ClientIP())
		}
		c.JSON(status, gin.H{"error": errorCode(err), "message": auth.BannerMessage(err)})
		return
	}

	c.JSON(http.StatusOK, sess)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.provider.SignOut(c.Request.Context(), middleware.Claims(c)); err != nil {
		c.JSON(authStatus(err), gin.H{"error": errorCode(err), "message": auth.BannerMessage(err)})
		return
	}
	c.Status(http.StatusNoContent)
}

func authStatus(err error) int {
	switch auth.CodeOf(err) {
	case auth.CodeMissingFields, auth.CodeInvalidEmail, auth.CodeWeakPassword:
		return http.StatusBadRequest
	case auth.CodeEmailInUse:
		return http.StatusConflict
	case auth.CodeUserNotFound, auth.CodeWrongPassword, auth.CodeInvalidCredential:
		return http.StatusUnauthorized
	case auth.CodeTooManyRequests:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	if code := auth.CodeOf(err); code != "" {
		return code
	}
	return auth.CodeInternal
}

// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"maproom-service/internal/domain/auth"
	"maproom-service/internal/middleware"
	"maproom-service/internal/pkg/response"
	service "maproom-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register creates a new user account
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to register", err)
		return
	}

	response.Success(c, http.StatusCreated, "account created successfully", user)
}

// Login authenticates a user and opens a session
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.FromError(c, "login failed", err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", result)
}

// Refresh exchanges a refresh token for a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to refresh token", err)
		return
	}

	response.Success(c, http.StatusOK, "token refreshed", result)
}

// Logout tears down the current session
func (h *AuthHandler) Logout(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	jti := middleware.MustGetJTI(c)

	if err := h.authService.Logout(c.Request.Context(), identityID, jti); err != nil {
		response.FromError(c, "failed to logout", err)
		return
	}

	response.Success(c, http.StatusOK, "logged out", nil)
}

// LogoutEverywhere tears down every session of the user
func (h *AuthHandler) LogoutEverywhere(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	if err := h.authService.LogoutEverywhere(c.Request.Context(), identityID); err != nil {
		response.FromError(c, "failed to logout", err)
		return
	}

	response.Success(c, http.StatusOK, "logged out everywhere", nil)
}

// ChangePassword replaces the user's password and revokes all sessions
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req auth.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), identityID, &req); err != nil {
		response.FromError(c, "failed to change password", err)
		return
	}

	response.Success(c, http.StatusOK, "password changed", nil)
}

// GetProfile returns the authenticated user's account
func (h *AuthHandler) GetProfile(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	user, err := h.authService.GetProfile(c.Request.Context(), identityID)
	if err != nil {
		response.FromError(c, "failed to load profile", err)
		return
	}

	response.Success(c, http.StatusOK, "profile retrieved", user)
}

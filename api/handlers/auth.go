package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/cloudpulse/api/middleware"
	"github.com/OldStager01/cloudpulse/internal/auth"
	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/pkg/config"
	"github.com/OldStager01/cloudpulse/pkg/database/queries"
	"github.com/OldStager01/cloudpulse/pkg/validation"
)

type AuthHandler struct {
	userRepo    *queries.UserRepository
	authService *auth.Service
	config      config.APIConfig
}

func NewAuthHandler(userRepo *queries.UserRepository, authService *auth.Service, cfg config.APIConfig) *AuthHandler {
	return &AuthHandler{
		userRepo:    userRepo,
		authService: authService,
		config:      cfg,
	}
}

type RegisterRequest struct {
	Username        string `json:"username" binding:"required" example:"alice"`
	Email           string `json:"email" example:"alice@example.com"`
	Password        string `json:"password" binding:"required" example:"s3cret-pass"`
	ConfirmPassword string `json:"confirm_password" binding:"required" example:"s3cret-pass"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"alice"`
	Password string `json:"password" binding:"required" example:"s3cret-pass"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in" example:"86400"`
	Username  string `json:"username" example:"alice"`
}

// Register godoc
// @Summary Register an account
// @Description Create an account and sign it in
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Account details"
// @Success 201 {object} LoginResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 409 {object} map[string]string "Username already taken"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.Username = validation.SanitizeString(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.ValidateUsername(req.Username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx, cancel := requestContext(c, h.config.RequestTimeout)
	defer cancel()

	user, err := h.userRepo.Create(ctx, req.Username, req.Email, hash)
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		case errors.Is(err, queries.ErrUsernameNeeded):
			c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		default:
			logger.WithContext(c.Request.Context()).WithError(err).Error("Failed to create user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		}
		return
	}

	logger.WithField("username", user.Username).Info("User registered")
	h.issueSession(c, http.StatusCreated, user.ID, user.Username)
}

// Login godoc
// @Summary Sign in
// @Description Exchange credentials for a JWT, also set as an HTTP-only cookie
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx, cancel := requestContext(c, h.config.RequestTimeout)
	defer cancel()

	user, err := h.userRepo.GetByUsername(ctx, validation.SanitizeString(req.Username))
	if err != nil {
		if errors.Is(err, queries.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.issueSession(c, http.StatusOK, user.ID, user.Username)
}

// Logout godoc
// @Summary Sign out
// @Description Clears the auth cookie. Tokens are stateless and expire on their own.
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName(), "", -1, "/", "", h.config.CookieSecure, true)

	logger.WithField("username", middleware.GetUsername(c)).Info("User logged out")
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) issueSession(c *gin.Context, status, userID int, username string) {
	token, err := h.authService.GenerateToken(userID, username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	maxAge := int(h.authService.Duration().Seconds())

	// HTTP-only so page scripts cannot read it
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName(), token, maxAge, "/", "", h.config.CookieSecure, true)

	c.JSON(status, LoginResponse{
		Token:     token,
		ExpiresIn: maxAge,
		Username:  username,
	})
}

func (h *AuthHandler) cookieName() string {
	if h.config.CookieName != "" {
		return h.config.CookieName
	}
	return middleware.AuthCookieName
}

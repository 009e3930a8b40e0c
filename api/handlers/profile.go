package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/cloudpulse/api/middleware"
	"github.com/OldStager01/cloudpulse/pkg/config"
	"github.com/OldStager01/cloudpulse/pkg/database/queries"
	"github.com/OldStager01/cloudpulse/pkg/validation"
)

type ProfileHandler struct {
	userRepo *queries.UserRepository
	config   config.APIConfig
}

func NewProfileHandler(userRepo *queries.UserRepository, cfg config.APIConfig) *ProfileHandler {
	return &ProfileHandler{userRepo: userRepo, config: cfg}
}

type ProfileResponse struct {
	ID                 int      `json:"id" example:"1"`
	Username           string   `json:"username" example:"alice"`
	Email              string   `json:"email" example:"alice@example.com"`
	NotificationEmails []string `json:"notification_emails"`
}

type UpdateEmailsRequest struct {
	Emails []string `json:"emails" example:"ops@example.com,finance@example.com"`
}

// Get godoc
// @Summary Current profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 404 {object} map[string]string "User not found"
// @Router /profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	ctx, cancel := requestContext(c, h.config.RequestTimeout)
	defer cancel()

	user, err := h.userRepo.GetByID(ctx, middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, queries.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch profile"})
		return
	}

	emails := user.NotificationEmails
	if emails == nil {
		emails = []string{}
	}
	c.JSON(http.StatusOK, ProfileResponse{
		ID:                 user.ID,
		Username:           user.Username,
		Email:              user.Email,
		NotificationEmails: emails,
	})
}

// UpdateEmails godoc
// @Summary Replace notification emails
// @Description Extra addresses that receive anomaly alerts alongside the account email
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateEmailsRequest true "Addresses"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Invalid address"
// @Router /profile/emails [put]
func (h *ProfileHandler) UpdateEmails(c *gin.Context) {
	var req UpdateEmailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	emails, err := validation.ValidateEmailList(req.Emails)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c, h.config.RequestTimeout)
	defer cancel()

	if err := h.userRepo.SetNotificationEmails(ctx, middleware.GetUserID(c), emails); err != nil {
		if errors.Is(err, queries.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notification emails"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notification_emails": emails,
		"count":               len(emails),
	})
}

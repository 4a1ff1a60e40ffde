package profile

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"myautowhiz-backend/internal/auth"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/pkg/utils"
)

// Handler serves /user.
type Handler struct {
	service *Service
}

// NewHandler creates a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleGetProfile returns the caller's profile, subscription and usage
func (h *Handler) HandleGetProfile(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), auth.UserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleUpdateProfile applies the editable profile fields
func (h *Handler) HandleUpdateProfile(c *gin.Context) {
	var patch Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.RespondError(c, apperrors.Validation("invalid request body").WithDetails(err.Error()))
		return
	}

	view, err := h.service.Update(c.Request.Context(), auth.UserID(c), patch)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleDeleteAccount soft deletes the caller's account
func (h *Handler) HandleDeleteAccount(c *gin.Context) {
	var req struct {
		Confirmation string `json:"confirmation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, apperrors.Validation("confirmation is required"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), auth.UserID(c), req.Confirmation); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

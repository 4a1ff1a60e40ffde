package billing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/auth"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/pkg/utils"
)

// Handler serves the plan catalog and the caller's billing state.
type Handler struct {
	db      *gorm.DB
	gateway Gateway
	siteURL string
}

// NewHandler creates a Handler. siteURL is the dashboard origin used for provider redirects.
func NewHandler(db *gorm.DB, gateway Gateway, siteURL string) *Handler {
	return &Handler{db: db, gateway: gateway, siteURL: siteURL}
}

// HandleGetPlans returns all active plans, cheapest first
func (h *Handler) HandleGetPlans(c *gin.Context) {
	var plans []models.SubscriptionPlan
	if err := h.db.WithContext(c.Request.Context()).
		Where("active = ?", true).
		Order("price_monthly ASC").
		Find(&plans).Error; err != nil {
		utils.RespondError(c, apperrors.Internal("Failed to fetch plans", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// HandleGetSubscription returns the caller's subscription with its plan, or null
func (h *Handler) HandleGetSubscription(c *gin.Context) {
	var sub models.Subscription
	err := h.db.WithContext(c.Request.Context()).
		Preload("Plan").
		Where("user_id = ?", auth.UserID(c)).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusOK, gin.H{"subscription": nil})
		return
	}
	if err != nil {
		utils.RespondError(c, apperrors.Internal("Failed to fetch subscription", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// HandleGetPayments returns the caller's recorded payments, newest first
func (h *Handler) HandleGetPayments(c *gin.Context) {
	limit := utils.QueryInt(c, "limit", 20, 1, 100)
	offset := utils.QueryInt(c, "offset", 0, 0, 0)
	userID := auth.UserID(c)
	db := h.db.WithContext(c.Request.Context())

	var total int64
	if err := db.Model(&models.Payment{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		utils.RespondError(c, apperrors.Internal("Failed to count payments", err))
		return
	}

	payments := []models.Payment{}
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&payments).Error; err != nil {
		utils.RespondError(c, apperrors.Internal("Failed to fetch payments", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"total":    total,
		"hasMore":  int64(offset+limit) < total,
	})
}

// HandleCreateCheckout starts a provider checkout for one of the catalog prices
func (h *Handler) HandleCreateCheckout(c *gin.Context) {
	var req struct {
		PriceID string `json:"priceId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, apperrors.Validation("priceId is required"))
		return
	}

	ctx := c.Request.Context()
	plan, err := planByPrice(h.db.WithContext(ctx).Where("active = ?", true), req.PriceID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if plan == nil {
		utils.RespondError(c, apperrors.Validation("Unknown price"))
		return
	}

	profile, err := h.profile(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	url, err := h.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		UserID:     profile.ID,
		Email:      profile.Email,
		PriceID:    req.PriceID,
		CustomerID: profile.StripeCustomerID,
		SuccessURL: h.siteURL + "/dashboard/billing?checkout=success",
		CancelURL:  h.siteURL + "/pricing?checkout=canceled",
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// HandleCreatePortal opens the provider's billing portal for the caller
func (h *Handler) HandleCreatePortal(c *gin.Context) {
	profile, err := h.profile(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if profile.StripeCustomerID == "" {
		utils.RespondError(c, apperrors.Validation("No billing account found for this user"))
		return
	}

	url, err := h.gateway.CreatePortalSession(c.Request.Context(), profile.StripeCustomerID, h.siteURL+"/dashboard/billing")
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) profile(c *gin.Context) (*models.Profile, error) {
	p, err := profileByID(h.db.WithContext(c.Request.Context()), auth.UserID(c))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NotFound("Profile")
	}
	return p, nil
}

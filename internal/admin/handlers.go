package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/activity"
	"myautowhiz-backend/internal/auth"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/pkg/utils"
)

// Handler serves staff-only catalog and account statistics routes.
type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RequireStaff restricts a group to admin and super_admin profiles.
func RequireStaff(db *gorm.DB) gin.HandlerFunc {
	return auth.RequireRole(db, models.RoleAdmin, models.RoleSuperAdmin)
}

type planPatch struct {
	Description          *string `json:"description"`
	AnalysesPerMonth     *int    `json:"analyses_per_month"`
	Unlimited            bool    `json:"unlimited"`
	Active               *bool   `json:"active"`
	StripePriceIDMonthly *string `json:"stripe_price_id_monthly"`
	StripePriceIDYearly  *string `json:"stripe_price_id_yearly"`
}

func (p planPatch) updates() (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.Unlimited {
		updates["analyses_per_month"] = nil
	} else if p.AnalysesPerMonth != nil {
		if *p.AnalysesPerMonth < 0 {
			return nil, apperrors.Validation("analyses_per_month must not be negative")
		}
		updates["analyses_per_month"] = *p.AnalysesPerMonth
	}
	if p.Active != nil {
		updates["active"] = *p.Active
	}
	if p.StripePriceIDMonthly != nil {
		updates["stripe_price_id_monthly"] = *p.StripePriceIDMonthly
	}
	if p.StripePriceIDYearly != nil {
		updates["stripe_price_id_yearly"] = *p.StripePriceIDYearly
	}
	if len(updates) == 0 {
		return nil, apperrors.Validation("No updatable fields provided")
	}
	return updates, nil
}

// HandleListPlans returns every plan including inactive ones
func (h *Handler) HandleListPlans(c *gin.Context) {
	var plans []models.SubscriptionPlan
	if err := h.db.WithContext(c.Request.Context()).Order("price_monthly ASC").Find(&plans).Error; err != nil {
		utils.RespondError(c, apperrors.Internal("Failed to fetch plans", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// HandleUpdatePlan edits the whitelisted columns of a catalog plan
func (h *Handler) HandleUpdatePlan(c *gin.Context) {
	var req planPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, apperrors.Validation("Invalid request body").WithDetails(err.Error()))
		return
	}
	updates, err := req.updates()
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	ctx := c.Request.Context()
	planID := c.Param("id")
	var plan models.SubscriptionPlan
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", planID).First(&plan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Plan")
			}
			return apperrors.Internal("Failed to load plan", err)
		}
		if err := tx.Model(&plan).Updates(updates).Error; err != nil {
			return apperrors.Internal("Failed to update plan", err)
		}
		if err := tx.Where("id = ?", planID).First(&plan).Error; err != nil {
			return apperrors.Internal("Failed to reload plan", err)
		}
		return activity.Record(ctx, tx, auth.UserID(c), activity.PlanUpdated, activity.ResourcePlan, plan.ID, models.EventDetails{
			PlanID:   plan.ID,
			PlanName: plan.Name,
		})
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"plan_id":  plan.ID,
		"admin_id": auth.UserID(c),
	}).Info("subscription plan updated")
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

// HandleGetAdminStats returns account and billing totals
func (h *Handler) HandleGetAdminStats(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	var profiles, activeSubs, analyses int64
	if err := db.Model(&models.Profile{}).Count(&profiles).Error; err != nil {
		utils.RespondError(c, apperrors.Internal("Failed to gather stats", err))
		return
	}
	if err := db.Model(&models.Subscription{}).Where("status IN ?", []string{models.SubscriptionActive, models.SubscriptionTrialing}).Count(&activeSubs).Error; err != nil {
		utils.RespondError(c, apperrors.Internal("Failed to gather stats", err))
		return
	}
	if err := db.Model(&models.Analysis{}).Count(&analyses).Error; err != nil {
		utils.RespondError(c, apperrors.Internal("Failed to gather stats", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"total_users":          profiles,
			"active_subscriptions": activeSubs,
			"total_analyses":       analyses,
		},
	})
}

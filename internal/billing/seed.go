package billing

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/config"
	"myautowhiz-backend/internal/models"
)

func intPtr(n int) *int { return &n }

// DefaultPlans is the catalog written to an empty database.
func DefaultPlans(prices config.PriceIDs) []models.SubscriptionPlan {
	return []models.SubscriptionPlan{
		{
			Name:             "Free",
			Description:      "Try MyAutoWhiz with two analyses a month",
			AnalysesPerMonth: intPtr(2),
			Features:         datatypes.NewJSONType(models.PlanFeatures{}),
			Active:           true,
		},
		{
			Name:                 "Pro",
			Description:          "For active car shoppers",
			PriceMonthly:         1999,
			PriceYearly:          19900,
			AnalysesPerMonth:     intPtr(25),
			StripePriceIDMonthly: prices.ProMonthly,
			StripePriceIDYearly:  prices.ProYearly,
			Features: datatypes.NewJSONType(models.PlanFeatures{
				HistoryReports: true,
				VisualAnalysis: true,
				MarketValue:    true,
			}),
			Active: true,
		},
		{
			Name:                 "Enterprise",
			Description:          "Unlimited analyses for dealers and fleets",
			PriceMonthly:         9999,
			PriceYearly:          99900,
			StripePriceIDMonthly: prices.EnterpriseMonthly,
			StripePriceIDYearly:  prices.EnterpriseYearly,
			Features: datatypes.NewJSONType(models.PlanFeatures{
				HistoryReports:  true,
				VisualAnalysis:  true,
				AudioAnalysis:   true,
				MarketValue:     true,
				PrioritySupport: true,
			}),
			Active: true,
		},
	}
}

// SeedPlans inserts the default catalog when no plans exist yet.
func SeedPlans(ctx context.Context, db *gorm.DB, prices config.PriceIDs) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.SubscriptionPlan{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count plans: %w", err)
	}
	if count > 0 {
		return nil
	}

	plans := DefaultPlans(prices)
	if err := db.WithContext(ctx).Create(&plans).Error; err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	logrus.WithField("plans", len(plans)).Info("seeded subscription plans")
	return nil
}

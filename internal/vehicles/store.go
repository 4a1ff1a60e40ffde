package vehicles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/activity"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/internal/vehicledata"
)

// Store manages the caller's saved vehicles.
type Store struct {
	db      *gorm.DB
	decoder vehicledata.Decoder
	log     *logrus.Entry
}

// NewStore creates a Store. decoder may be nil, which disables enrichment.
func NewStore(db *gorm.DB, decoder vehicledata.Decoder) *Store {
	return &Store{db: db, decoder: decoder, log: logrus.WithField("component", "vehicles")}
}

// CreateInput is a vehicle to save.
type CreateInput struct {
	VIN           string   `json:"vin" binding:"required"`
	Year          *int     `json:"year"`
	Make          string   `json:"make"`
	Model         string   `json:"model"`
	Trim          string   `json:"trim"`
	Nickname      string   `json:"nickname"`
	Notes         string   `json:"notes"`
	Mileage       *int     `json:"mileage"`
	PurchasePrice *float64 `json:"purchase_price"`
}

// UpdateInput holds the editable fields; nil means unchanged.
type UpdateInput struct {
	Nickname      *string  `json:"nickname"`
	Notes         *string  `json:"notes"`
	Mileage       *int     `json:"mileage"`
	PurchasePrice *float64 `json:"purchase_price"`
}

// Page is one page of saved vehicles.
type Page struct {
	Vehicles []models.SavedVehicle `json:"vehicles"`
	Total    int64                 `json:"total"`
	HasMore  bool                  `json:"hasMore"`
}

func validateAmounts(mileage *int, price *float64) error {
	if mileage != nil && *mileage < 0 {
		return apperrors.Validation("mileage cannot be negative")
	}
	if price != nil && *price < 0 {
		return apperrors.Validation("purchase_price cannot be negative")
	}
	return nil
}

// List returns the caller's saved vehicles, newest first.
func (s *Store) List(ctx context.Context, userID string, limit, offset int) (*Page, error) {
	owned := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.SavedVehicle{}).Where("user_id = ?", userID)
	}

	page := &Page{Vehicles: []models.SavedVehicle{}}
	if err := owned().Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("count vehicles: %w", err)
	}
	if err := owned().Order("created_at DESC").Limit(limit).Offset(offset).Find(&page.Vehicles).Error; err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	page.HasMore = int64(offset+limit) < page.Total
	return page, nil
}

// Get returns one saved vehicle owned by the caller.
func (s *Store) Get(ctx context.Context, id, userID string) (*models.SavedVehicle, error) {
	var v models.SavedVehicle
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Vehicle")
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return &v, nil
}

// Create saves a vehicle. Make, model and year are filled from the VIN decoder when omitted.
func (s *Store) Create(ctx context.Context, userID string, in CreateInput) (*models.SavedVehicle, error) {
	vin, err := vehicledata.ParseVIN(in.VIN)
	if err != nil {
		return nil, err
	}
	if err := validateAmounts(in.Mileage, in.PurchasePrice); err != nil {
		return nil, err
	}

	v := &models.SavedVehicle{
		UserID:        userID,
		VIN:           vin,
		Year:          in.Year,
		Make:          strings.TrimSpace(in.Make),
		Model:         strings.TrimSpace(in.Model),
		Trim:          strings.TrimSpace(in.Trim),
		Nickname:      strings.TrimSpace(in.Nickname),
		Notes:         in.Notes,
		Mileage:       in.Mileage,
		PurchasePrice: in.PurchasePrice,
	}
	s.enrich(ctx, v)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.SavedVehicle{}).Where("user_id = ? AND vin = ?", userID, vin).Count(&existing).Error; err != nil {
			return fmt.Errorf("check duplicate vehicle: %w", err)
		}
		if existing > 0 {
			return apperrors.Conflict("Vehicle already saved")
		}
		if err := tx.Create(v).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Conflict("Vehicle already saved")
			}
			return fmt.Errorf("insert vehicle: %w", err)
		}
		return activity.Record(ctx, tx, userID, activity.VehicleSaved, activity.ResourceVehicle, v.ID,
			models.EventDetails{VIN: vin})
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Store) enrich(ctx context.Context, v *models.SavedVehicle) {
	if s.decoder == nil || (v.Make != "" && v.Model != "" && v.Year != nil) {
		return
	}
	decoded, err := s.decoder.DecodeVin(ctx, v.VIN)
	if err != nil {
		s.log.WithError(err).WithField("vin", v.VIN).Debug("vehicle enrichment skipped")
		return
	}
	if v.Make == "" {
		v.Make = decoded.Make
	}
	if v.Model == "" {
		v.Model = decoded.Model
	}
	if v.Trim == "" {
		v.Trim = decoded.Trim
	}
	if v.Year == nil {
		v.Year = decoded.Year
	}
}

// Update applies the editable fields.
func (s *Store) Update(ctx context.Context, id, userID string, in UpdateInput) (*models.SavedVehicle, error) {
	if err := validateAmounts(in.Mileage, in.PurchasePrice); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Nickname != nil {
		updates["nickname"] = strings.TrimSpace(*in.Nickname)
	}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}
	if in.Mileage != nil {
		updates["mileage"] = *in.Mileage
	}
	if in.PurchasePrice != nil {
		updates["purchase_price"] = *in.PurchasePrice
	}
	if len(updates) == 0 {
		return nil, apperrors.Validation("no updatable fields provided")
	}

	res := s.db.WithContext(ctx).Model(&models.SavedVehicle{}).Where("id = ? AND user_id = ?", id, userID).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update vehicle: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("Vehicle")
	}
	return s.Get(ctx, id, userID)
}

// Delete removes a saved vehicle.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v models.SavedVehicle
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&v).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Vehicle")
		}
		if err != nil {
			return fmt.Errorf("load vehicle: %w", err)
		}
		if err := tx.Delete(&v).Error; err != nil {
			return fmt.Errorf("delete vehicle: %w", err)
		}
		return activity.Record(ctx, tx, userID, activity.VehicleRemoved, activity.ResourceVehicle, v.ID,
			models.EventDetails{VIN: v.VIN})
	})
}

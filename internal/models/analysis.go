package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Analysis statuses.
const (
	AnalysisPending    = "pending"
	AnalysisProcessing = "processing"
	AnalysisCompleted  = "completed"
	AnalysisFailed     = "failed"
)

// Analysis is one vehicle-analysis request, owned by a single user.
type Analysis struct {
	ID            string                             `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        string                             `json:"user_id" gorm:"type:uuid;index;not null"`
	VIN           string                             `json:"vin" gorm:"size:17;index;not null"`
	Status        string                             `json:"status" gorm:"index;not null"`
	Mileage       *int                               `json:"mileage"`
	AskingPrice   *float64                           `json:"asking_price"`
	Options       datatypes.JSONType[AnalysisOptions] `json:"analysis_options"`
	Notes         string                             `json:"notes"`
	Tags          datatypes.JSONSlice[string]        `json:"tags"`
	Starred       bool                               `json:"starred"`
	OverallScore  *float64                           `json:"overall_score"`
	FailureReason string                             `json:"failure_reason,omitempty"`
	CompletedAt   *time.Time                         `json:"completed_at"`
	CreatedAt     time.Time                          `json:"created_at"`
	UpdatedAt     time.Time                          `json:"updated_at"`

	HistoryReport *AnalysisHistoryReport `json:"history_report,omitempty" gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
	VisualResults []AnalysisVisualResult `json:"visual_results,omitempty" gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
	AudioResults  []AnalysisAudioResult  `json:"audio_results,omitempty" gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
}

func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// AnalysisHistoryReport stores the vehicle-history provider response for an analysis.
type AnalysisHistoryReport struct {
	ID            string         `json:"id" gorm:"type:uuid;primaryKey"`
	AnalysisID    string         `json:"analysis_id" gorm:"type:uuid;uniqueIndex;not null"`
	Provider      string         `json:"provider"`
	AccidentCount int            `json:"accident_count"`
	OwnerCount    int            `json:"owner_count"`
	TitleStatus   string         `json:"title_status"`
	Report        datatypes.JSON `json:"report"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (r *AnalysisHistoryReport) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// AnalysisVisualResult is one photo scored by the visual condition model.
type AnalysisVisualResult struct {
	ID         string                      `json:"id" gorm:"type:uuid;primaryKey"`
	AnalysisID string                      `json:"analysis_id" gorm:"type:uuid;index;not null"`
	ImageURL   string                      `json:"image_url"`
	Category   string                      `json:"category"`
	Score      float64                     `json:"score"`
	Findings   datatypes.JSONSlice[string] `json:"findings"`
	CreatedAt  time.Time                   `json:"created_at"`
}

func (r *AnalysisVisualResult) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// AnalysisAudioResult is one engine recording scored by the audio model.
type AnalysisAudioResult struct {
	ID         string                      `json:"id" gorm:"type:uuid;primaryKey"`
	AnalysisID string                      `json:"analysis_id" gorm:"type:uuid;index;not null"`
	AudioURL   string                      `json:"audio_url"`
	Score      float64                     `json:"score"`
	Findings   datatypes.JSONSlice[string] `json:"findings"`
	CreatedAt  time.Time                   `json:"created_at"`
}

func (r *AnalysisAudioResult) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// SavedVehicle is a vehicle bookmarked by a user; VINs are unique per user.
type SavedVehicle struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        string    `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_saved_vehicle_user_vin"`
	VIN           string    `json:"vin" gorm:"size:17;not null;uniqueIndex:idx_saved_vehicle_user_vin"`
	Year          *int      `json:"year"`
	Make          string    `json:"make"`
	Model         string    `json:"model"`
	Trim          string    `json:"trim"`
	Nickname      string    `json:"nickname"`
	Notes         string    `json:"notes"`
	Mileage       *int      `json:"mileage"`
	PurchasePrice *float64  `json:"purchase_price"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (v *SavedVehicle) BeforeCreate(tx *gorm.DB) error {
	assignID(&v.ID)
	return nil
}

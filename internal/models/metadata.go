package models

// ProfilePreferences are the user-editable settings stored on a profile.
type ProfilePreferences struct {
	EmailNotifications bool   `json:"email_notifications"`
	PushNotifications  bool   `json:"push_notifications"`
	MarketingEmails    bool   `json:"marketing_emails"`
	DistanceUnit       string `json:"distance_unit,omitempty"` // "mi" or "km"
	Currency           string `json:"currency,omitempty"`
}

// AnalysisOptions selects which reports an analysis includes.
type AnalysisOptions struct {
	IncludeHistory bool `json:"includeHistory"`
	IncludeVisual  bool `json:"includeVisual"`
	IncludeAudio   bool `json:"includeAudio"`
}

// PlanFeatures describes what a subscription plan unlocks.
type PlanFeatures struct {
	HistoryReports  bool              `json:"history_reports"`
	VisualAnalysis  bool              `json:"visual_analysis"`
	AudioAnalysis   bool              `json:"audio_analysis"`
	MarketValue     bool              `json:"market_value"`
	PrioritySupport bool              `json:"priority_support"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// EventDetails carries the known keys attached to activity logs and notifications.
// Extra is reserved for producers that need ad-hoc fields.
type EventDetails struct {
	AnalysisID string            `json:"analysis_id,omitempty"`
	VIN        string            `json:"vin,omitempty"`
	PlanID     string            `json:"plan_id,omitempty"`
	PlanName   string            `json:"plan_name,omitempty"`
	InvoiceID  string            `json:"invoice_id,omitempty"`
	AmountDue  int64             `json:"amount_due,omitempty"`
	Amount     int64             `json:"amount,omitempty"`
	Currency   string            `json:"currency,omitempty"`
	Status     string            `json:"status,omitempty"`
	EventID    string            `json:"event_id,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

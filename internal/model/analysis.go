package model

import (
	"encoding/json"
	"time"
)

// SavedAnalysis is an entry in a user's library: the address that was
// analyzed and the workflow payload exactly as it was returned.
type SavedAnalysis struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Address   string          `json:"address"`
	Title     string          `json:"title"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Activity actions written to `activity_logs`.
const (
	ActionLogin            = "login"
	ActionRegister         = "register"
	ActionListingCreated   = "listing_created"
	ActionListingSubmitted = "listing_submitted"
	ActionListingApproved  = "listing_approved"
	ActionListingRejected  = "listing_rejected"
	ActionListingReset     = "listing_reset"
	ActionListingSold      = "listing_sold"
	ActionListingUnsold    = "listing_unsold"
	ActionListingDeleted   = "listing_deleted"
	ActionAnalysisRun      = "analysis_run"
)

// ActivityLog records a user-visible action for the admin audit view.
type ActivityLog struct {
	ID        int64     `json:"id"`
	UserID    *string   `json:"user_id"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

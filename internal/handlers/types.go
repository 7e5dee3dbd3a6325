package handlers

import (
	"time"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics"`
}

// ManualRuleRequest is the create/update payload for a rule. Pointer fields
// distinguish "not sent" from zero values on update.
type ManualRuleRequest struct {
	EmailPattern   string   `json:"email_pattern"`
	SubjectPattern string   `json:"subject_pattern"`
	Priority       *int     `json:"priority"`
	Purpose        string   `json:"purpose"`
	Confidence     *float64 `json:"confidence"`
	IsShadowMode   *bool    `json:"is_shadow_mode"`
}

// PreferenceRequest is the create payload for a preference.
type PreferenceRequest struct {
	Item string `json:"item" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// ClassifyRequest feeds the classifier diagnostics endpoint.
type ClassifyRequest struct {
	Sender  string `json:"sender" binding:"required"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ScanRequest configures a learning history scan.
type ScanRequest struct {
	Days int `json:"days"`
}

// EmailPage is the paginated history response.
type EmailPage struct {
	Emails  interface{} `json:"emails"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
}

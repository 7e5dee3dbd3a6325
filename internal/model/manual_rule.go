package model

import (
	"time"
)

// ManualRule is a user-authored or learned forwarding rule. A rule needs at
// least one of EmailPattern/SubjectPattern to be usable; when both are set
// the rule fires only if both match. Shadow rules are evaluated against live
// traffic for telemetry but never influence the forwarding decision.
type ManualRule struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	EmailPattern   string    `json:"email_pattern" gorm:"type:varchar(255)"`
	SubjectPattern string    `json:"subject_pattern" gorm:"type:varchar(255)"`
	Priority       int       `json:"priority" gorm:"not null;default:10;index"`
	Purpose        string    `json:"purpose" gorm:"type:varchar(255)"`
	Confidence     float64   `json:"confidence" gorm:"not null;default:1"`
	IsShadowMode   bool      `json:"is_shadow_mode" gorm:"not null;default:false;index"`
	MatchCount     int       `json:"match_count" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for ManualRule
func (ManualRule) TableName() string {
	return "manual_rules"
}

// Usable reports whether the rule carries at least one pattern.
func (r *ManualRule) Usable() bool {
	return r.EmailPattern != "" || r.SubjectPattern != ""
}

// DefaultRulePriority is assigned to rules auto-created from user feedback.
const DefaultRulePriority = 10

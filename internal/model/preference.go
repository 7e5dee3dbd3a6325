package model

import (
	"time"
)

// PreferenceType is the closed set of preference kinds.
type PreferenceType string

const (
	PrefBlockedSender   PreferenceType = "blocked_sender"
	PrefBlockedCategory PreferenceType = "blocked_category"
	PrefAlwaysForward   PreferenceType = "always_forward"
)

// Valid reports whether t is one of the known preference types.
func (t PreferenceType) Valid() bool {
	switch t {
	case PrefBlockedSender, PrefBlockedCategory, PrefAlwaysForward:
		return true
	}
	return false
}

// Preference is a user-declared allow/block item. Item is free text matched
// as a case-insensitive substring against sender or subject.
type Preference struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Item      string         `json:"item" gorm:"type:varchar(255);not null;uniqueIndex:idx_pref_item_type"`
	Type      PreferenceType `json:"type" gorm:"type:varchar(50);not null;uniqueIndex:idx_pref_item_type"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName specifies the table name for Preference
func (Preference) TableName() string {
	return "preferences"
}

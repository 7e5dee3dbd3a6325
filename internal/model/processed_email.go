package model

import (
	"time"
)

// EmailStatus is the closed set of processing outcomes for an email.
type EmailStatus string

const (
	StatusForwarded       EmailStatus = "forwarded"
	StatusBlocked         EmailStatus = "blocked"
	StatusIgnored         EmailStatus = "ignored"
	StatusError           EmailStatus = "error"
	StatusCommandExecuted EmailStatus = "command_executed"
)

// ProcessedEmail records the outcome for one unique message. The unique
// index on EmailID is the deduplication mechanism; rows are inserted with
// ON CONFLICT DO NOTHING so dedup stays correct even if cycles overlap.
type ProcessedEmail struct {
	ID                 uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	EmailID            string      `json:"email_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Subject            string      `json:"subject" gorm:"type:varchar(998)"`
	Sender             string      `json:"sender" gorm:"type:varchar(255);index"`
	Body               string      `json:"-" gorm:"type:text"`
	ReceivedAt         time.Time   `json:"received_at"`
	ProcessedAt        time.Time   `json:"processed_at" gorm:"index"`
	Status             EmailStatus `json:"status" gorm:"type:varchar(50);not null;index"`
	AccountEmail       string      `json:"account_email" gorm:"type:varchar(255)"`
	Category           string      `json:"category" gorm:"type:varchar(100)"`
	Reason             string      `json:"reason" gorm:"type:varchar(255)"`
	RetentionExpiresAt time.Time   `json:"retention_expires_at" gorm:"index"`
}

// TableName specifies the table name for ProcessedEmail
func (ProcessedEmail) TableName() string {
	return "processed_emails"
}

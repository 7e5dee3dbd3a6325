package model

import (
	"time"
)

// RunStatus is the state of a processing cycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
)

// ProcessingRun is the summary row for one fetch-classify-forward cycle.
// It is created with status running at cycle start and finalized at the end.
type ProcessingRun struct {
	ID                   uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	StartedAt            time.Time  `json:"started_at" gorm:"index"`
	CompletedAt          *time.Time `json:"completed_at"`
	EmailsChecked        int        `json:"emails_checked" gorm:"not null;default:0"`
	EmailsProcessed      int        `json:"emails_processed" gorm:"not null;default:0"`
	EmailsForwarded      int        `json:"emails_forwarded" gorm:"not null;default:0"`
	Status               RunStatus  `json:"status" gorm:"type:varchar(50);not null;index"`
	ErrorMessage         string     `json:"error_message" gorm:"type:text"`
	CheckIntervalMinutes int        `json:"check_interval_minutes"`
}

// TableName specifies the table name for ProcessingRun
func (ProcessingRun) TableName() string {
	return "processing_runs"
}

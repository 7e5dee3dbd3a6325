package model

import (
	"time"
)

// LearningCandidate is a provisional rule pattern found by the history scan,
// pending human approval. Approval converts it into a ManualRule; rejection
// discards it.
type LearningCandidate struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Sender         string    `json:"sender" gorm:"type:varchar(255);not null;index"`
	SubjectPattern string    `json:"subject_pattern" gorm:"type:varchar(255)"`
	Confidence     float64   `json:"confidence" gorm:"not null;default:0"`
	Matches        int       `json:"matches" gorm:"not null;default:1"`
	ExampleSubject string    `json:"example_subject" gorm:"type:varchar(998)"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for LearningCandidate
func (LearningCandidate) TableName() string {
	return "learning_candidates"
}

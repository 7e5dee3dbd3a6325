package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"receipt-sentinel/internal/model"
)

// RecordProcessedEmail inserts the row unless the email_id is already
// present. The unique index plus ON CONFLICT DO NOTHING keeps dedup correct
// even if two cycles ever overlap; there is no read-then-write race.
// Returns whether a row was actually inserted.
func (r *Repository) RecordProcessedEmail(email *model.ProcessedEmail) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email_id"}},
		DoNothing: true,
	}).Create(email)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record processed email: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// IsProcessed reports whether a message identifier has already been handled.
func (r *Repository) IsProcessed(emailID string) (bool, error) {
	var count int64
	result := r.db.Model(&model.ProcessedEmail{}).Where("email_id = ?", emailID).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check processed email: %w", result.Error)
	}
	return count > 0, nil
}

func (r *Repository) GetProcessedEmail(id uint) (*model.ProcessedEmail, error) {
	var email model.ProcessedEmail
	if result := r.db.First(&email, id); result.Error != nil {
		return nil, result.Error
	}
	return &email, nil
}

func (r *Repository) SaveProcessedEmail(email *model.ProcessedEmail) error {
	if result := r.db.Save(email); result.Error != nil {
		return fmt.Errorf("failed to save processed email: %w", result.Error)
	}
	return nil
}

// EmailHistory returns one page of processed emails, newest first, with
// optional status and processed-at range filters. Returns the page and the
// total row count for the filter.
func (r *Repository) EmailHistory(page, perPage int, status model.EmailStatus, from, to *time.Time) ([]model.ProcessedEmail, int64, error) {
	query := r.db.Model(&model.ProcessedEmail{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if from != nil {
		query = query.Where("processed_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("processed_at <= ?", *to)
	}

	var total int64
	if result := query.Count(&total); result.Error != nil {
		return nil, 0, fmt.Errorf("failed to count email history: %w", result.Error)
	}

	var emails []model.ProcessedEmail
	result := query.Order("processed_at DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&emails)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to get email history: %w", result.Error)
	}
	return emails, total, nil
}

// PurgeExpiredBodies clears stored bodies whose retention window has passed.
// It only touches expired rows, so it is safe to interleave with a running
// processing cycle.
func (r *Repository) PurgeExpiredBodies(now time.Time) (int64, error) {
	result := r.db.Model(&model.ProcessedEmail{}).
		Where("retention_expires_at < ? AND body <> ''", now).
		Update("body", "")
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge expired bodies: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CreateRun opens a run row with status running.
func (r *Repository) CreateRun(intervalMinutes int) (*model.ProcessingRun, error) {
	run := model.ProcessingRun{
		StartedAt:            time.Now().UTC(),
		Status:               model.RunRunning,
		CheckIntervalMinutes: intervalMinutes,
	}
	if result := r.db.Create(&run); result.Error != nil {
		return nil, fmt.Errorf("failed to create processing run: %w", result.Error)
	}
	return &run, nil
}

// FinalizeRun writes the run's final counts and status.
func (r *Repository) FinalizeRun(run *model.ProcessingRun) error {
	now := time.Now().UTC()
	run.CompletedAt = &now
	if result := r.db.Save(run); result.Error != nil {
		return fmt.Errorf("failed to finalize processing run: %w", result.Error)
	}
	return nil
}

func (r *Repository) ListRuns(limit int) ([]model.ProcessingRun, error) {
	var runs []model.ProcessingRun
	result := r.db.Order("started_at DESC").Limit(limit).Find(&runs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list processing runs: %w", result.Error)
	}
	return runs, nil
}

func (r *Repository) GetRun(id uint) (*model.ProcessingRun, error) {
	var run model.ProcessingRun
	if result := r.db.First(&run, id); result.Error != nil {
		return nil, result.Error
	}
	return &run, nil
}

// UpsertCandidate increments an existing learning candidate matching
// (sender, subject_pattern) or creates a new one. Returns whether a new
// candidate was created.
func (r *Repository) UpsertCandidate(candidate *model.LearningCandidate) (bool, error) {
	var existing model.LearningCandidate
	result := r.db.Where("sender = ? AND subject_pattern = ?", candidate.Sender, candidate.SubjectPattern).First(&existing)
	if result.Error == nil {
		existing.Matches++
		if result := r.db.Save(&existing); result.Error != nil {
			return false, fmt.Errorf("failed to update learning candidate: %w", result.Error)
		}
		return false, nil
	}
	if result.Error != gorm.ErrRecordNotFound {
		return false, fmt.Errorf("failed to check learning candidate: %w", result.Error)
	}

	if result := r.db.Create(candidate); result.Error != nil {
		return false, fmt.Errorf("failed to create learning candidate: %w", result.Error)
	}
	return true, nil
}

func (r *Repository) ListCandidates() ([]model.LearningCandidate, error) {
	var candidates []model.LearningCandidate
	result := r.db.Order("matches DESC, created_at DESC").Find(&candidates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list learning candidates: %w", result.Error)
	}
	return candidates, nil
}

func (r *Repository) GetCandidate(id uint) (*model.LearningCandidate, error) {
	var candidate model.LearningCandidate
	if result := r.db.First(&candidate, id); result.Error != nil {
		return nil, result.Error
	}
	return &candidate, nil
}

func (r *Repository) DeleteCandidate(id uint) error {
	result := r.db.Delete(&model.LearningCandidate{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete learning candidate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

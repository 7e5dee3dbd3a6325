// Package repository is the data access layer for rules, preferences, and
// processing history.
package repository

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"receipt-sentinel/internal/model"
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle for request-scoped queries in the HTTP
// layer.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// ActiveRules returns non-shadow rules ordered by priority descending. The
// order among equal priorities is whatever the database returns; callers
// must not rely on it.
func (r *Repository) ActiveRules() ([]model.ManualRule, error) {
	var rules []model.ManualRule
	result := r.db.Where("is_shadow_mode = ?", false).Order("priority DESC").Find(&rules)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get active rules: %w", result.Error)
	}
	return rules, nil
}

// ShadowRules returns all rules still in shadow mode.
func (r *Repository) ShadowRules() ([]model.ManualRule, error) {
	var rules []model.ManualRule
	result := r.db.Where("is_shadow_mode = ?", true).Find(&rules)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get shadow rules: %w", result.Error)
	}
	return rules, nil
}

// AllRules returns every rule, active and shadow, ordered by priority.
func (r *Repository) AllRules() ([]model.ManualRule, error) {
	var rules []model.ManualRule
	result := r.db.Order("priority DESC").Find(&rules)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get rules: %w", result.Error)
	}
	return rules, nil
}

func (r *Repository) CreateRule(rule *model.ManualRule) error {
	if !rule.Usable() {
		return fmt.Errorf("rule needs at least one of email_pattern or subject_pattern")
	}
	if result := r.db.Create(rule); result.Error != nil {
		return fmt.Errorf("failed to create rule: %w", result.Error)
	}
	return nil
}

func (r *Repository) SaveRule(rule *model.ManualRule) error {
	if result := r.db.Save(rule); result.Error != nil {
		return fmt.Errorf("failed to save rule: %w", result.Error)
	}
	return nil
}

func (r *Repository) GetRule(id uint) (*model.ManualRule, error) {
	var rule model.ManualRule
	if result := r.db.First(&rule, id); result.Error != nil {
		return nil, result.Error
	}
	return &rule, nil
}

func (r *Repository) DeleteRule(id uint) error {
	result := r.db.Delete(&model.ManualRule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddPreference inserts a preference if the (item, type) pair does not exist
// yet. Adding an existing pair is a logged no-op, not an error. Returns
// whether a row was created.
func (r *Repository) AddPreference(item string, prefType model.PreferenceType) (bool, error) {
	if !prefType.Valid() {
		return false, fmt.Errorf("unknown preference type %q", prefType)
	}

	var existing model.Preference
	result := r.db.Where("item = ? AND type = ?", item, prefType).First(&existing)
	if result.Error == nil {
		logrus.Infof("Preference already exists: %s -> %s", prefType, item)
		return false, nil
	}
	if result.Error != gorm.ErrRecordNotFound {
		return false, fmt.Errorf("failed to check preference: %w", result.Error)
	}

	pref := model.Preference{Item: item, Type: prefType}
	if result := r.db.Create(&pref); result.Error != nil {
		return false, fmt.Errorf("failed to create preference: %w", result.Error)
	}
	logrus.Infof("Preference added: %s -> %s", prefType, item)
	return true, nil
}

// PreferencesByType returns all preferences with any of the given types.
func (r *Repository) PreferencesByType(types ...model.PreferenceType) ([]model.Preference, error) {
	var prefs []model.Preference
	result := r.db.Where("type IN ?", types).Find(&prefs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", result.Error)
	}
	return prefs, nil
}

func (r *Repository) AllPreferences() ([]model.Preference, error) {
	var prefs []model.Preference
	result := r.db.Order("created_at DESC").Find(&prefs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", result.Error)
	}
	return prefs, nil
}

func (r *Repository) DeletePreference(id uint) error {
	result := r.db.Delete(&model.Preference{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete preference: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

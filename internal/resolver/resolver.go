// Package resolver combines manual rules, user preferences, and the
// heuristic detector into one forwarding decision.
package resolver

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"receipt-sentinel/internal/detector"
	"receipt-sentinel/internal/model"
	"receipt-sentinel/internal/pattern"
	"receipt-sentinel/internal/repository"
)

// Step identifies which layer produced the decision.
type Step string

const (
	StepManualRule    Step = "manual_rule"
	StepAlwaysForward Step = "always_forward"
	StepBlocked       Step = "blocked_preference"
	StepHeuristics    Step = "heuristics"
)

// Decision is the outcome for one email. Rule and Preference are set when
// the corresponding step fired.
type Decision struct {
	Forward    bool              `json:"forward"`
	Step       Step              `json:"step"`
	Reason     string            `json:"reason"`
	Rule       *model.ManualRule `json:"rule,omitempty"`
	Preference *model.Preference `json:"preference,omitempty"`
}

// Resolver applies the precedence order: manual rules, then always-forward
// preferences, then blocked preferences, then heuristics. Any failure while
// consulting the database is logged and resolution falls through to the
// heuristics; a database hiccup never blocks the pipeline.
type Resolver struct {
	repo     *repository.Repository
	detector *detector.Detector
}

func New(repo *repository.Repository, det *detector.Detector) *Resolver {
	return &Resolver{repo: repo, detector: det}
}

// Resolve returns the forwarding decision for an email.
func (r *Resolver) Resolve(email model.EmailMessage) Decision {
	sender := strings.ToLower(email.From)
	subject := strings.ToLower(email.Subject)

	if rule, err := r.matchManualRule(sender, subject); err != nil {
		logrus.Warnf("Rule lookup failed, falling back to heuristics: %v", err)
	} else if rule != nil {
		return Decision{
			Forward: true,
			Step:    StepManualRule,
			Reason:  fmt.Sprintf("Matched rule: %s", rulePurpose(rule)),
			Rule:    rule,
		}
	}

	if pref, err := r.matchPreference(sender, subject, model.PrefAlwaysForward); err != nil {
		logrus.Warnf("Preference lookup failed, falling back to heuristics: %v", err)
	} else if pref != nil {
		return Decision{
			Forward:    true,
			Step:       StepAlwaysForward,
			Reason:     fmt.Sprintf("Always forward: %s", pref.Item),
			Preference: pref,
		}
	}

	if pref, err := r.matchPreference(sender, subject, model.PrefBlockedSender, model.PrefBlockedCategory); err != nil {
		logrus.Warnf("Preference lookup failed, falling back to heuristics: %v", err)
	} else if pref != nil {
		return Decision{
			Forward:    false,
			Step:       StepBlocked,
			Reason:     fmt.Sprintf("Blocked: %s", pref.Item),
			Preference: pref,
		}
	}

	if r.detector.IsReceipt(email) {
		return Decision{Forward: true, Step: StepHeuristics, Reason: "Detected as receipt"}
	}
	return Decision{Forward: false, Step: StepHeuristics, Reason: "Not a receipt"}
}

// matchManualRule returns the highest-priority active rule matching the
// email, or nil. Equal priorities tie-break on database order, which is
// deliberately unspecified.
func (r *Resolver) matchManualRule(sender, subject string) (*model.ManualRule, error) {
	rules, err := r.repo.ActiveRules()
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if pattern.RuleMatches(&rules[i], sender, subject) {
			return &rules[i], nil
		}
	}
	return nil, nil
}

func (r *Resolver) matchPreference(sender, subject string, types ...model.PreferenceType) (*model.Preference, error) {
	prefs, err := r.repo.PreferencesByType(types...)
	if err != nil {
		return nil, err
	}
	for i := range prefs {
		item := strings.ToLower(prefs[i].Item)
		if item == "" {
			continue
		}
		if strings.Contains(sender, item) || strings.Contains(subject, item) {
			return &prefs[i], nil
		}
	}
	return nil, nil
}

func rulePurpose(rule *model.ManualRule) string {
	if rule.Purpose == "" {
		return "no purpose"
	}
	return rule.Purpose
}

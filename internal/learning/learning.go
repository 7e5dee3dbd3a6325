// Package learning builds shadow rules from observed traffic and promotes
// them once they have earned enough confidence.
package learning

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"receipt-sentinel/internal/detector"
	"receipt-sentinel/internal/fetcher"
	"receipt-sentinel/internal/logutil"
	"receipt-sentinel/internal/model"
	"receipt-sentinel/internal/pattern"
	"receipt-sentinel/internal/repository"
)

const (
	// A generated rule starts at baseConfidence; deriving a subject pattern
	// adds subjectBonus. The sum is not clamped at creation; only
	// shadow-mode increments clamp at 1.0.
	baseConfidence = 0.7
	subjectBonus   = 0.1

	// Each shadow match nudges confidence up by matchIncrement, capped at 1.
	matchIncrement = 0.05
)

var (
	domainRe = regexp.MustCompile(`@([\w.-]+)`)
	wordRe   = regexp.MustCompile(`\w+`)

	// subjectNoise are words too generic to anchor a subject pattern on.
	subjectNoise = map[string]struct{}{
		"the": {}, "and": {}, "your": {},
		"order": {}, "confirmation": {}, "receipt": {},
	}
)

// Engine runs the shadow-rule loop and the retroactive history scan.
type Engine struct {
	repo                *repository.Repository
	detector            *detector.Detector
	confidenceThreshold float64
	matchThreshold      int
}

func New(repo *repository.Repository, det *detector.Detector, confidenceThreshold float64, matchThreshold int) *Engine {
	return &Engine{
		repo:                repo,
		detector:            det,
		confidenceThreshold: confidenceThreshold,
		matchThreshold:      matchThreshold,
	}
}

// GenerateRuleFromEmail derives a shadow rule suggestion from a single
// email: the sender's domain becomes "*@domain", and the first subject word
// of at least four characters outside the noise set becomes "*word*".
func GenerateRuleFromEmail(sender, subject string) *model.ManualRule {
	sender = strings.ToLower(sender)
	subject = strings.ToLower(subject)

	domain := sender
	if m := domainRe.FindStringSubmatch(sender); m != nil {
		domain = m[1]
	}

	rule := &model.ManualRule{
		EmailPattern: "*@" + domain,
		Priority:     model.DefaultRulePriority,
		Purpose:      fmt.Sprintf("Learned from %s", sender),
		Confidence:   baseConfidence,
		IsShadowMode: true,
	}

	for _, word := range wordRe.FindAllString(subject, -1) {
		if len(word) <= 3 {
			continue
		}
		if _, noisy := subjectNoise[word]; noisy {
			continue
		}
		rule.SubjectPattern = "*" + word + "*"
		rule.Confidence += subjectBonus
		break
	}
	return rule
}

// RunShadowMode evaluates every shadow rule against the email. Matches
// increment the rule's match count and nudge its confidence toward 1.0.
// This is telemetry only; shadow rules never affect the forwarding outcome.
func (e *Engine) RunShadowMode(email model.EmailMessage) error {
	rules, err := e.repo.ShadowRules()
	if err != nil {
		return err
	}

	sender := strings.ToLower(email.From)
	subject := strings.ToLower(email.Subject)

	for i := range rules {
		rule := &rules[i]
		if !pattern.RuleMatches(rule, sender, subject) {
			continue
		}
		rule.MatchCount++
		rule.Confidence += matchIncrement
		if rule.Confidence > 1.0 {
			rule.Confidence = 1.0
		}
		if err := e.repo.SaveRule(rule); err != nil {
			return err
		}
		logrus.Debugf("Shadow rule %d matched (count=%d confidence=%.2f)", rule.ID, rule.MatchCount, rule.Confidence)
	}
	return nil
}

// AutoPromoteRules flips every shadow rule that has reached both the
// confidence and match-count thresholds to an active rule, prefixing its
// purpose with "(AUTO) ". Returns the number of promotions.
func (e *Engine) AutoPromoteRules() (int, error) {
	rules, err := e.repo.ShadowRules()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for i := range rules {
		rule := &rules[i]
		if rule.Confidence < e.confidenceThreshold || rule.MatchCount < e.matchThreshold {
			continue
		}
		rule.IsShadowMode = false
		rule.Purpose = "(AUTO) " + rule.Purpose
		if err := e.repo.SaveRule(rule); err != nil {
			return promoted, err
		}
		promoted++
		logrus.Infof("Auto-promoted rule %d: %s | %s", rule.ID, rule.EmailPattern, rule.SubjectPattern)
	}
	return promoted, nil
}

// ScanHistory re-fetches mail from the lookback window across all accounts,
// runs the heuristic detector (no database overrides) over anything not yet
// recorded, and files learning candidates for the receipts it finds.
// Candidates are deduplicated by sender and subject pattern. Returns the
// number of newly created candidates. Per-account failures are logged and
// do not abort the scan.
func (e *Engine) ScanHistory(ctx context.Context, mf fetcher.MailFetcher, accounts []model.Account, days int) (int, error) {
	if len(accounts) == 0 {
		logrus.Warn("History scan: no accounts configured")
		return 0, nil
	}

	since := time.Now().AddDate(0, 0, -days)
	created := 0

	for _, account := range accounts {
		emails, err := mf.Fetch(ctx, account, since, 0)
		if err != nil {
			logrus.Errorf("History scan failed for account %s: %v", logutil.RedactEmail(account.Email), err)
			continue
		}
		logrus.Infof("History scan: account %s returned %d emails", logutil.RedactEmail(account.Email), len(emails))

		for _, email := range emails {
			if email.MessageID == "" {
				continue
			}
			processed, err := e.repo.IsProcessed(email.MessageID)
			if err != nil {
				return created, err
			}
			if processed {
				continue
			}
			if !e.detector.IsReceipt(email) {
				continue
			}

			suggestion := GenerateRuleFromEmail(email.From, email.Subject)
			candidate := model.LearningCandidate{
				Sender:         email.From,
				SubjectPattern: suggestion.SubjectPattern,
				Confidence:     suggestion.Confidence,
				Matches:        1,
				ExampleSubject: email.Subject,
			}
			isNew, err := e.repo.UpsertCandidate(&candidate)
			if err != nil {
				return created, err
			}
			if isNew {
				created++
			}
		}
	}
	return created, nil
}

// ApproveCandidate converts a learning candidate into an active rule and
// removes the candidate.
func (e *Engine) ApproveCandidate(id uint) (*model.ManualRule, error) {
	candidate, err := e.repo.GetCandidate(id)
	if err != nil {
		return nil, err
	}

	rule := GenerateRuleFromEmail(candidate.Sender, candidate.ExampleSubject)
	rule.SubjectPattern = candidate.SubjectPattern
	rule.Confidence = candidate.Confidence
	rule.IsShadowMode = false
	rule.Purpose = fmt.Sprintf("Approved from candidate (%s)", candidate.Sender)

	if err := e.repo.CreateRule(rule); err != nil {
		return nil, err
	}
	if err := e.repo.DeleteCandidate(id); err != nil {
		return nil, err
	}
	return rule, nil
}

// RejectCandidate discards a candidate without creating a rule.
func (e *Engine) RejectCandidate(id uint) error {
	return e.repo.DeleteCandidate(id)
}

// Package processor drives one fetch-classify-forward cycle across all
// monitored accounts.
package processor

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"receipt-sentinel/internal/command"
	"receipt-sentinel/internal/detector"
	"receipt-sentinel/internal/fetcher"
	"receipt-sentinel/internal/learning"
	"receipt-sentinel/internal/logutil"
	"receipt-sentinel/internal/metrics"
	"receipt-sentinel/internal/model"
	"receipt-sentinel/internal/repository"
	"receipt-sentinel/internal/resolver"
)

// Forwarder delivers an accepted receipt to the target address.
type Forwarder interface {
	Forward(ctx context.Context, email model.EmailMessage, target string) error
}

// Options carry the per-cycle knobs from configuration.
type Options struct {
	ForwardTarget   string
	IntervalMinutes int
	LookbackDays    int
	BatchLimit      int
	RetentionHours  int
}

// Processor executes processing cycles. One Processor is shared by the
// scheduler and the run-once API; callers serialize cycles themselves.
type Processor struct {
	repo      *repository.Repository
	resolver  *resolver.Resolver
	learning  *learning.Engine
	commands  *command.Interpreter
	fetcher   fetcher.MailFetcher
	accounts  fetcher.AccountDirectory
	forwarder Forwarder
	metrics   *metrics.Metrics
	opts      Options
}

func New(
	repo *repository.Repository,
	res *resolver.Resolver,
	eng *learning.Engine,
	cmds *command.Interpreter,
	mf fetcher.MailFetcher,
	accounts fetcher.AccountDirectory,
	fw Forwarder,
	m *metrics.Metrics,
	opts Options,
) *Processor {
	return &Processor{
		repo:      repo,
		resolver:  res,
		learning:  eng,
		commands:  cmds,
		fetcher:   mf,
		accounts:  accounts,
		forwarder: fw,
		metrics:   m,
		opts:      opts,
	}
}

// ProcessCycle runs one full cycle: open a run row, fetch mail for every
// account, classify and forward, record each outcome, then promote eligible
// shadow rules and finalize the run. Per-account fetch failures are recorded
// in the run's error message without aborting the cycle; a missing forward
// target or an unexpected failure marks the whole run as an error.
func (p *Processor) ProcessCycle(ctx context.Context) (*model.ProcessingRun, error) {
	run, err := p.repo.CreateRun(p.opts.IntervalMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to open processing run: %w", err)
	}

	p.metrics.CycleCount.Inc()
	started := time.Now()

	defer func() {
		p.metrics.CycleDuration.Observe(time.Since(started).Seconds())
		if r := recover(); r != nil {
			run.Status = model.RunError
			run.ErrorMessage = fmt.Sprintf("panic: %v", r)
			if ferr := p.repo.FinalizeRun(run); ferr != nil {
				logrus.Errorf("Failed to finalize run after panic: %v", ferr)
			}
			logrus.Errorf("Processing cycle panicked: %v", r)
		}
	}()

	if err := p.runCycle(ctx, run); err != nil {
		run.Status = model.RunError
		run.ErrorMessage = err.Error()
		if ferr := p.repo.FinalizeRun(run); ferr != nil {
			logrus.Errorf("Failed to finalize errored run: %v", ferr)
		}
		return run, err
	}

	if run.Status == model.RunRunning {
		run.Status = model.RunCompleted
	}
	if err := p.repo.FinalizeRun(run); err != nil {
		return run, err
	}
	p.updateRuleGauges()
	logrus.Infof("Cycle %d finished: checked=%d processed=%d forwarded=%d status=%s",
		run.ID, run.EmailsChecked, run.EmailsProcessed, run.EmailsForwarded, run.Status)
	return run, nil
}

func (p *Processor) runCycle(ctx context.Context, run *model.ProcessingRun) error {
	if p.opts.ForwardTarget == "" {
		return fmt.Errorf("forwarding target address is not configured")
	}

	emails, fetchErrors := p.fetchAll(ctx)
	run.EmailsChecked = len(emails)
	p.metrics.EmailsChecked.Add(float64(len(emails)))

	for i := range emails {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p.processEmail(ctx, run, emails[i])
	}

	// Promotion runs exactly once per cycle, after all emails.
	if promoted, err := p.learning.AutoPromoteRules(); err != nil {
		logrus.Errorf("Auto-promotion failed: %v", err)
	} else if promoted > 0 {
		logrus.Infof("Auto-promoted %d shadow rules", promoted)
	}

	if len(fetchErrors) > 0 {
		run.ErrorMessage = strings.Join(fetchErrors, "; ")
	}
	return nil
}

// fetchAll pulls recent mail for every active account. A failing account is
// skipped and reported; it never prevents other accounts from being
// processed.
func (p *Processor) fetchAll(ctx context.Context) ([]model.EmailMessage, []string) {
	var (
		emails []model.EmailMessage
		errs   []string
	)

	since := time.Now().AddDate(0, 0, -p.opts.LookbackDays)
	for _, account := range p.accounts.ListActive() {
		fetched, err := p.fetcher.Fetch(ctx, account, since, p.opts.BatchLimit)
		if err != nil {
			redacted := logutil.RedactEmail(account.Email)
			logrus.Errorf("Fetch failed for account %s: %v", redacted, err)
			errs = append(errs, fmt.Sprintf("fetch %s: %v", redacted, err))
			continue
		}
		for i := range fetched {
			fetched[i].AccountEmail = account.Email
		}
		emails = append(emails, fetched...)
	}
	return emails, errs
}

// processEmail handles one email: dedup, command handling, classification,
// forwarding, shadow telemetry, and the history row.
func (p *Processor) processEmail(ctx context.Context, run *model.ProcessingRun, email model.EmailMessage) {
	emailID := email.MessageID
	if emailID == "" {
		emailID = syntheticID(email)
	}

	// Already-seen messages are skipped without logging; re-polling the
	// same window every cycle makes duplicates the common case.
	if seen, err := p.repo.IsProcessed(emailID); err != nil {
		logrus.Errorf("Dedup check failed for %s: %v", emailID, err)
		return
	} else if seen {
		return
	}

	var (
		status   model.EmailStatus
		reason   string
		category string
	)

	if p.commands != nil && p.commands.IsCommandEmail(email) {
		executed, err := p.commands.Execute(ctx, email)
		switch {
		case err != nil:
			status = model.StatusError
			reason = fmt.Sprintf("Command failed: %v", err)
		case executed:
			status = model.StatusCommandExecuted
			reason = "Operator command executed"
			p.metrics.CommandsExecuted.Inc()
		default:
			status = model.StatusIgnored
			reason = "No command found"
		}
		category = "command"
	} else {
		decision := p.resolver.Resolve(email)
		category = detector.Categorize(email)

		// Shadow telemetry never influences the outcome; operator mail
		// is excluded from it entirely.
		if err := p.learning.RunShadowMode(email); err != nil {
			logrus.Errorf("Shadow evaluation failed for %s: %v", emailID, err)
		}
		if decision.Forward {
			if err := p.forwarder.Forward(ctx, email, p.opts.ForwardTarget); err != nil {
				logrus.Errorf("Forward failed for %s: %v", emailID, err)
				status = model.StatusError
				reason = fmt.Sprintf("Forward failed: %v", err)
				p.metrics.ForwardFailures.Inc()
			} else {
				status = model.StatusForwarded
				reason = decision.Reason
				run.EmailsForwarded++
				p.metrics.EmailsForwarded.Inc()
			}
		} else {
			if decision.Step == resolver.StepBlocked {
				status = model.StatusBlocked
			} else {
				status = model.StatusIgnored
			}
			reason = decision.Reason
		}
	}

	record := model.ProcessedEmail{
		EmailID:            emailID,
		Subject:            email.Subject,
		Sender:             email.From,
		Body:               email.Body,
		ReceivedAt:         email.Date,
		ProcessedAt:        time.Now().UTC(),
		Status:             status,
		AccountEmail:       email.AccountEmail,
		Category:           category,
		Reason:             reason,
		RetentionExpiresAt: time.Now().UTC().Add(time.Duration(p.opts.RetentionHours) * time.Hour),
	}
	inserted, err := p.repo.RecordProcessedEmail(&record)
	if err != nil {
		logrus.Errorf("Failed to record email %s: %v", emailID, err)
		return
	}
	if !inserted {
		// A concurrent cycle recorded it first; the unique index wins.
		logrus.Debugf("Email %s recorded by another cycle", emailID)
		return
	}
	run.EmailsProcessed++
}

// syntheticID derives a stable identifier for messages that carry no
// Message-ID header. Distinct messages must never collide on a shared
// placeholder, while re-polling the same message in a later cycle still
// deduplicates.
func syntheticID(email model.EmailMessage) string {
	h := fnv.New64a()
	h.Write([]byte(email.From))
	h.Write([]byte{0})
	h.Write([]byte(email.Subject))
	h.Write([]byte{0})
	h.Write([]byte(email.Date.UTC().Format(time.RFC3339)))
	return fmt.Sprintf("synthetic-%016x", h.Sum64())
}

// RunRetentionSweep clears stored bodies whose retention window has passed.
// It runs on its own schedule and is safe to interleave with a cycle.
func (p *Processor) RunRetentionSweep() {
	purged, err := p.repo.PurgeExpiredBodies(time.Now().UTC())
	if err != nil {
		logrus.Errorf("Retention sweep failed: %v", err)
		return
	}
	if purged > 0 {
		logrus.Infof("Retention sweep cleared %d stored bodies", purged)
	}
}

// ReprocessAsForwarded handles the "ignored, but should have been forwarded"
// feedback toggle: the stored email is forwarded, its row flipped to
// forwarded, and an active rule is created so the sender is matched next
// time.
func (p *Processor) ReprocessAsForwarded(ctx context.Context, id uint) (*model.ProcessedEmail, error) {
	record, err := p.repo.GetProcessedEmail(id)
	if err != nil {
		return nil, err
	}
	if p.opts.ForwardTarget == "" {
		return nil, fmt.Errorf("forwarding target address is not configured")
	}

	email := model.EmailMessage{
		MessageID:    record.EmailID,
		Subject:      record.Subject,
		From:         record.Sender,
		Body:         record.Body,
		Date:         record.ReceivedAt,
		AccountEmail: record.AccountEmail,
	}
	if err := p.forwarder.Forward(ctx, email, p.opts.ForwardTarget); err != nil {
		return nil, fmt.Errorf("failed to forward email: %w", err)
	}

	record.Status = model.StatusForwarded
	record.Reason = "Reprocessed by user feedback"
	if err := p.repo.SaveProcessedEmail(record); err != nil {
		return nil, err
	}

	rule := learning.GenerateRuleFromEmail(record.Sender, record.Subject)
	rule.IsShadowMode = false
	rule.Purpose = fmt.Sprintf("Created from user feedback (%s)", logutil.RedactEmail(record.Sender))
	if err := p.repo.CreateRule(rule); err != nil {
		logrus.Errorf("Failed to create feedback rule: %v", err)
	}

	return record, nil
}

func (p *Processor) updateRuleGauges() {
	if active, err := p.repo.ActiveRules(); err == nil {
		p.metrics.ActiveRules.Set(float64(len(active)))
	}
	if shadow, err := p.repo.ShadowRules(); err == nil {
		p.metrics.ShadowRules.Set(float64(len(shadow)))
	}
}

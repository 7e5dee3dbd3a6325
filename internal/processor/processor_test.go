package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"receipt-sentinel/internal/command"
	"receipt-sentinel/internal/detector"
	"receipt-sentinel/internal/learning"
	"receipt-sentinel/internal/metrics"
	"receipt-sentinel/internal/model"
	"receipt-sentinel/internal/repository"
	"receipt-sentinel/internal/resolver"
)

type fakeFetcher struct {
	emails map[string][]model.EmailMessage
	errs   map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, account model.Account, _ time.Time, _ int) ([]model.EmailMessage, error) {
	if err := f.errs[account.Email]; err != nil {
		return nil, err
	}
	return f.emails[account.Email], nil
}

func (f *fakeFetcher) FetchByID(context.Context, model.Account, string) (*model.EmailMessage, error) {
	return nil, nil
}

func (f *fakeFetcher) Close() error { return nil }

type fakeDirectory struct {
	accounts []model.Account
}

func (d *fakeDirectory) ListActive() []model.Account { return d.accounts }

type fakeForwarder struct {
	sent []model.EmailMessage
	err  error
}

func (f *fakeForwarder) Forward(_ context.Context, email model.EmailMessage, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

func (f *fakeForwarder) Notify(context.Context, string, string) error { return nil }

type testEnv struct {
	repo      *repository.Repository
	fetcher   *fakeFetcher
	forwarder *fakeForwarder
	processor *Processor
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.ManualRule{},
		&model.Preference{},
		&model.ProcessedEmail{},
		&model.ProcessingRun{},
		&model.LearningCandidate{},
	))

	repo := repository.New(db)
	det := detector.New([]string{"monitored@example.com"})
	res := resolver.New(repo, det)
	eng := learning.New(repo, det, 0.9, 3)
	ff := &fakeFetcher{emails: map[string][]model.EmailMessage{}, errs: map[string]error{}}
	fw := &fakeForwarder{}
	cmds := command.NewInterpreter(repo, fw, "operator@example.com")
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	dir := &fakeDirectory{accounts: []model.Account{{Email: "monitored@example.com", Provider: "imap"}}}

	proc := New(repo, res, eng, cmds, ff, dir, fw, m, opts)
	return &testEnv{repo: repo, fetcher: ff, forwarder: fw, processor: proc}
}

func defaultOptions() Options {
	return Options{
		ForwardTarget:   "receipts@example.com",
		IntervalMinutes: 5,
		LookbackDays:    1,
		BatchLimit:      50,
		RetentionHours:  24,
	}
}

func receipt(id string) model.EmailMessage {
	return model.EmailMessage{
		MessageID: id,
		From:      "noreply@somestore.com",
		Subject:   "Your receipt from Somestore",
		Body:      "Order #AB12345678 Total: $43.10",
		Date:      time.Now().UTC(),
	}
}

func TestProcessCycleForwardsReceipts(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	env.fetcher.emails["monitored@example.com"] = []model.EmailMessage{
		receipt("<r1@somestore.com>"),
		{MessageID: "<c1@example.com>", From: "friend@example.com", Subject: "lunch tomorrow?"},
	}

	run, err := env.processor.ProcessCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 2, run.EmailsChecked)
	assert.Equal(t, 2, run.EmailsProcessed)
	assert.Equal(t, 1, run.EmailsForwarded)
	assert.NotNil(t, run.CompletedAt)
	require.Len(t, env.forwarder.sent, 1)
	assert.Equal(t, "<r1@somestore.com>", env.forwarder.sent[0].MessageID)

	emails, _, err := env.repo.EmailHistory(1, 10, "", nil, nil)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	for _, e := range emails {
		assert.Equal(t, "monitored@example.com", e.AccountEmail)
		assert.False(t, e.RetentionExpiresAt.IsZero())
	}
}

func TestProcessCycleSkipsAlreadyProcessed(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	env.fetcher.emails["monitored@example.com"] = []model.EmailMessage{receipt("<r1@somestore.com>")}

	_, err := env.processor.ProcessCycle(context.Background())
	require.NoError(t, err)

	run, err := env.processor.ProcessCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 1, run.EmailsChecked)
	assert.Equal(t, 0, run.EmailsProcessed, "second cycle sees a duplicate")
	assert.Equal(t, 0, run.EmailsForwarded)
	assert.Len(t, env.forwarder.sent, 1, "no double forward")
}

func TestProcessCycleMissingForwardTarget(t *testing.T) {
	opts := defaultOptions()
	opts.ForwardTarget = ""
	env := newTestEnv(t, opts)
	env.fetcher.emails["monitored@example.com"] = []model.EmailMessage{receipt("<r1@somestore.com>")}

	run, err := env.processor.ProcessCycle(context.Background())
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunError, run.Status)
	assert.Contains(t, run.ErrorMessage, "forwarding target")
	assert.Empty(t, env.forwarder.sent)
}

func TestProcessCycleToleratesFetchFailures(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	env.processor.accounts = &fakeDirectory{accounts: []model.Account{
		{Email: "monitored@example.com"},
		{Email: "broken@example.com"},
	}}
	env.fetcher.emails["monitored@example.com"] = []model.EmailMessage{receipt("<r1@somestore.com>")}
	env.fetcher.errs["broken@example.com"] = errors.New("imap: connection refused")

	run, err := env.processor.ProcessCycle(context.Background())
	require.NoError(t, err, "a failing account must not abort the cycle")
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 1, run.EmailsForwarded)
	assert.Contains(t, run.ErrorMessage, "connection refused")
}

func TestProcessCycleForwardFailureRecordsError(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	env.forwarder.err = errors.New("gmail: quota exceeded")
	env.fetcher.emails["monitored@example.com"] = []model.EmailMessage{receipt("<r1@somestore.com>")}

	run, err := env.processor.ProcessCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 0, run.EmailsForwarded)

	emails, _, err := env.repo.EmailHistory(1, 10, model.StatusError, nil, nil)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].Reason, "quota exceeded")
}

func TestProcessCycleBlockedPreference(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	_, err := env.repo.AddPreference("somestore.com", model.PrefBlockedSender)
	require.NoError(t, err)
	env.fetcher.emails["monitored@example.com"] = []model.EmailMessage{receipt("<r1@somestore.com>")}

	run, err := env.processor.ProcessCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, run.EmailsForwarded)
	assert.Empty(t, env.forwarder.sent)

	emails, _, err := env.repo.EmailHistory(1, 10, model.StatusBlocked, nil, nil)
	require.NoError(t, err)
	require.Len(t, emails, 1)
}

func TestProcessCycleExecutesCommands(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	env.fetcher.emails["monitored@example.com"] = []model.EmailMessage{{
		MessageID: "<cmd1@example.com>",
		From:      "operator@example.com",
		Subject:   "Re: Your receipt from Somestore",
		Body:      "STOP somestore.com",
	}}

	run, err := env.processor.ProcessCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Empty(t, env.forwarder.sent, "command emails are never forwarded")

	emails, _, err := env.repo.EmailHistory(1, 10, model.StatusCommandExecuted, nil, nil)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "command", emails[0].Category)

	prefs, err := env.repo.PreferencesByType(model.PrefBlockedSender)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "somestore.com", prefs[0].Item)
}

func TestProcessCycleCommandEmailsSkipShadowTelemetry(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	require.NoError(t, env.repo.CreateRule(&model.ManualRule{
		EmailPattern: "*@example.com",
		Confidence:   0.5,
		IsShadowMode: true,
		Priority:     10,
	}))
	env.fetcher.emails["monitored@example.com"] = []model.EmailMessage{{
		MessageID: "<cmd1@example.com>",
		From:      "operator@example.com",
		Subject:   "Re: Your receipt from Somestore",
		Body:      "STOP somestore.com",
	}}

	_, err := env.processor.ProcessCycle(context.Background())
	require.NoError(t, err)

	rule, err := env.repo.GetRule(1)
	require.NoError(t, err)
	assert.Equal(t, 0, rule.MatchCount, "operator mail must not feed shadow rules")
	assert.InDelta(t, 0.5, rule.Confidence, 0.001)
}

func TestProcessCycleHandlesMissingMessageIDs(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := receipt("")
	first.Date = when
	second := receipt("")
	second.From = "billing@otherstore.com"
	second.Subject = "Your receipt from Otherstore"
	second.Date = when
	env.fetcher.emails["monitored@example.com"] = []model.EmailMessage{first, second}

	run, err := env.processor.ProcessCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, run.EmailsProcessed, "distinct messages without ids must both be processed")
	assert.Len(t, env.forwarder.sent, 2)

	// Re-polling the same window still deduplicates them.
	run, err = env.processor.ProcessCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, run.EmailsProcessed)
	assert.Len(t, env.forwarder.sent, 2, "no double forward on the next cycle")
}

func TestProcessCyclePromotesShadowRules(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	require.NoError(t, env.repo.CreateRule(&model.ManualRule{
		EmailPattern: "*@somestore.com",
		Purpose:      "Learned from noreply@somestore.com",
		Confidence:   0.95,
		MatchCount:   3,
		IsShadowMode: true,
		Priority:     10,
	}))

	_, err := env.processor.ProcessCycle(context.Background())
	require.NoError(t, err)

	active, err := env.repo.ActiveRules()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "(AUTO) Learned from noreply@somestore.com", active[0].Purpose)
}

func TestRunRetentionSweep(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	now := time.Now().UTC()
	_, err := env.repo.RecordProcessedEmail(&model.ProcessedEmail{
		EmailID:            "<old>",
		Body:               "stale body",
		Status:             model.StatusForwarded,
		ProcessedAt:        now.Add(-48 * time.Hour),
		RetentionExpiresAt: now.Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	env.processor.RunRetentionSweep()

	got, err := env.repo.GetProcessedEmail(1)
	require.NoError(t, err)
	assert.Empty(t, got.Body)
}

func TestReprocessAsForwarded(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	record := &model.ProcessedEmail{
		EmailID:     "<r1@somestore.com>",
		Subject:     "Your Somestore receipt",
		Sender:      "noreply@somestore.com",
		Body:        "Total: $43.10",
		Status:      model.StatusIgnored,
		ProcessedAt: time.Now().UTC(),
	}
	_, err := env.repo.RecordProcessedEmail(record)
	require.NoError(t, err)

	got, err := env.processor.ReprocessAsForwarded(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusForwarded, got.Status)
	require.Len(t, env.forwarder.sent, 1)
	assert.Equal(t, "<r1@somestore.com>", env.forwarder.sent[0].MessageID)

	// Feedback creates an active rule so the sender matches next time.
	active, err := env.repo.ActiveRules()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "*@somestore.com", active[0].EmailPattern)
	assert.False(t, active[0].IsShadowMode)
}

func TestProcessCycleHonorsContextCancellation(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	env.fetcher.emails["monitored@example.com"] = []model.EmailMessage{receipt("<r1@somestore.com>")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := env.processor.ProcessCycle(ctx)
	require.Error(t, err)
	assert.Equal(t, model.RunError, run.Status)
	assert.Empty(t, env.forwarder.sent)
}

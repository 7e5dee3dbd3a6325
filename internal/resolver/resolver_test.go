package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"receipt-sentinel/internal/detector"
	"receipt-sentinel/internal/model"
	"receipt-sentinel/internal/repository"
)

func newTestRepo(t *testing.T) *repository.Repository {
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
	return repository.New(db)
}

func receiptEmail() model.EmailMessage {
	return model.EmailMessage{
		From:    "noreply@somestore.com",
		Subject: "Your receipt from Somestore",
		Body:    "Order #AB12345678 Total: $43.10",
	}
}

func TestResolveManualRuleWins(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.CreateRule(&model.ManualRule{
		EmailPattern: "*@somestore.com",
		Priority:     10,
		Purpose:      "somestore receipts",
	}))
	// Even a blocked preference loses to an explicit rule.
	_, err := repo.AddPreference("somestore.com", model.PrefBlockedSender)
	require.NoError(t, err)

	r := New(repo, detector.New(nil))
	decision := r.Resolve(receiptEmail())
	assert.True(t, decision.Forward)
	assert.Equal(t, StepManualRule, decision.Step)
	assert.Equal(t, "Matched rule: somestore receipts", decision.Reason)
	require.NotNil(t, decision.Rule)
}

func TestResolveHighestPriorityRuleWins(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.CreateRule(&model.ManualRule{EmailPattern: "*@somestore.com", Priority: 5, Purpose: "low"}))
	high := &model.ManualRule{EmailPattern: "*somestore*", Priority: 50, Purpose: "high"}
	require.NoError(t, repo.CreateRule(high))

	r := New(repo, detector.New(nil))
	decision := r.Resolve(receiptEmail())
	require.NotNil(t, decision.Rule)
	assert.Equal(t, high.ID, decision.Rule.ID)
}

func TestResolveShadowRuleNeverFires(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.CreateRule(&model.ManualRule{
		EmailPattern: "*@example.com",
		IsShadowMode: true,
		Priority:     10,
	}))

	r := New(repo, detector.New(nil))
	decision := r.Resolve(model.EmailMessage{
		From:    "friend@example.com",
		Subject: "lunch tomorrow?",
	})
	assert.False(t, decision.Forward)
	assert.Equal(t, StepHeuristics, decision.Step)
}

func TestResolveAlwaysForwardBeatsBlocked(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.AddPreference("somestore.com", model.PrefAlwaysForward)
	require.NoError(t, err)
	_, err = repo.AddPreference("somestore.com", model.PrefBlockedSender)
	require.NoError(t, err)

	r := New(repo, detector.New(nil))
	decision := r.Resolve(receiptEmail())
	assert.True(t, decision.Forward)
	assert.Equal(t, StepAlwaysForward, decision.Step)
}

func TestResolveBlockedBeatsHeuristics(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.AddPreference("somestore.com", model.PrefBlockedSender)
	require.NoError(t, err)

	r := New(repo, detector.New(nil))
	// The email itself is a clear receipt; the preference must still win.
	email := receiptEmail()
	assert.True(t, detector.New(nil).IsReceipt(email))

	decision := r.Resolve(email)
	assert.False(t, decision.Forward)
	assert.Equal(t, StepBlocked, decision.Step)
	require.NotNil(t, decision.Preference)
	assert.Equal(t, "somestore.com", decision.Preference.Item)
}

func TestResolveHeuristicsFallback(t *testing.T) {
	repo := newTestRepo(t)
	r := New(repo, detector.New(nil))

	decision := r.Resolve(receiptEmail())
	assert.True(t, decision.Forward)
	assert.Equal(t, StepHeuristics, decision.Step)
	assert.Equal(t, "Detected as receipt", decision.Reason)

	decision = r.Resolve(model.EmailMessage{
		From:    "friend@example.com",
		Subject: "lunch tomorrow?",
		Body:    "see you at noon",
	})
	assert.False(t, decision.Forward)
	assert.Equal(t, "Not a receipt", decision.Reason)
}

func TestResolveSurvivesDatabaseFailure(t *testing.T) {
	repo := newTestRepo(t)
	sqlDB, err := repo.DB().DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	r := New(repo, detector.New(nil))
	decision := r.Resolve(receiptEmail())
	assert.True(t, decision.Forward)
	assert.Equal(t, StepHeuristics, decision.Step)
}

func TestExplainRecordsSteps(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.AddPreference("somestore.com", model.PrefBlockedSender)
	require.NoError(t, err)

	r := New(repo, detector.New(nil))
	trace := r.Explain(receiptEmail())
	assert.False(t, trace.Decision.Forward)
	assert.Equal(t, StepBlocked, trace.Decision.Step)
	assert.NotEmpty(t, trace.Steps)
}

package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"receipt-sentinel/internal/model"
	"receipt-sentinel/internal/repository"
)

type fakeNotifier struct {
	subjects []string
	bodies   []string
	err      error
}

func (n *fakeNotifier) Notify(_ context.Context, subject, body string) error {
	if n.err != nil {
		return n.err
	}
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

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

func TestIsCommandEmail(t *testing.T) {
	i := NewInterpreter(newTestRepo(t), nil, "operator@example.com")

	assert.True(t, i.IsCommandEmail(model.EmailMessage{From: "operator@example.com"}))
	assert.True(t, i.IsCommandEmail(model.EmailMessage{From: "Operator <OPERATOR@example.com>"}))
	assert.False(t, i.IsCommandEmail(model.EmailMessage{From: "stranger@example.com"}))

	// With no operator configured nothing is a command.
	none := NewInterpreter(newTestRepo(t), nil, "")
	assert.False(t, none.IsCommandEmail(model.EmailMessage{From: "operator@example.com"}))
}

func TestExecuteStop(t *testing.T) {
	repo := newTestRepo(t)
	notifier := &fakeNotifier{}
	i := NewInterpreter(repo, notifier, "operator@example.com")

	executed, err := i.Execute(context.Background(), model.EmailMessage{
		From: "operator@example.com",
		Body: "Thanks!\nSTOP somestore.com\n",
	})
	require.NoError(t, err)
	assert.True(t, executed)

	prefs, err := repo.PreferencesByType(model.PrefBlockedSender)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "somestore.com", prefs[0].Item)
	require.Len(t, notifier.bodies, 1)
	assert.Contains(t, notifier.bodies[0], "somestore.com")
}

func TestExecuteMore(t *testing.T) {
	repo := newTestRepo(t)
	i := NewInterpreter(repo, &fakeNotifier{}, "operator@example.com")

	executed, err := i.Execute(context.Background(), model.EmailMessage{
		From: "operator@example.com",
		Body: "more newsletters-i-like.com",
	})
	require.NoError(t, err)
	assert.True(t, executed)

	prefs, err := repo.PreferencesByType(model.PrefAlwaysForward)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "newsletters-i-like.com", prefs[0].Item)
}

func TestExecuteSettings(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.AddPreference("somestore.com", model.PrefBlockedSender)
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	i := NewInterpreter(repo, notifier, "operator@example.com")

	executed, err := i.Execute(context.Background(), model.EmailMessage{
		From: "operator@example.com",
		Body: "SETTINGS",
	})
	require.NoError(t, err)
	assert.True(t, executed)
	require.Len(t, notifier.bodies, 1)
	assert.Contains(t, notifier.bodies[0], "blocked_sender: somestore.com")
}

func TestExecuteOnlyFirstCommand(t *testing.T) {
	repo := newTestRepo(t)
	i := NewInterpreter(repo, &fakeNotifier{}, "operator@example.com")

	executed, err := i.Execute(context.Background(), model.EmailMessage{
		From: "operator@example.com",
		Body: "STOP somestore.com\nMORE other.com",
	})
	require.NoError(t, err)
	assert.True(t, executed)

	blocked, err := repo.PreferencesByType(model.PrefBlockedSender)
	require.NoError(t, err)
	assert.Len(t, blocked, 1)

	forwarded, err := repo.PreferencesByType(model.PrefAlwaysForward)
	require.NoError(t, err)
	assert.Empty(t, forwarded, "only the first command runs")
}

func TestExecuteNoCommand(t *testing.T) {
	i := NewInterpreter(newTestRepo(t), &fakeNotifier{}, "operator@example.com")

	executed, err := i.Execute(context.Background(), model.EmailMessage{
		From: "operator@example.com",
		Body: "just replying to say thanks",
	})
	require.NoError(t, err)
	assert.False(t, executed)

	// STOP with no argument is not a command either.
	executed, err = i.Execute(context.Background(), model.EmailMessage{
		From: "operator@example.com",
		Body: "STOP",
	})
	require.NoError(t, err)
	assert.False(t, executed)
}

func TestExecuteIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	i := NewInterpreter(repo, &fakeNotifier{}, "operator@example.com")

	for range [2]struct{}{} {
		executed, err := i.Execute(context.Background(), model.EmailMessage{
			From: "operator@example.com",
			Body: "STOP somestore.com",
		})
		require.NoError(t, err)
		assert.True(t, executed)
	}

	prefs, err := repo.PreferencesByType(model.PrefBlockedSender)
	require.NoError(t, err)
	assert.Len(t, prefs, 1)
}

func TestExecuteNotifierFailureIsNotFatal(t *testing.T) {
	repo := newTestRepo(t)
	i := NewInterpreter(repo, &fakeNotifier{err: errors.New("smtp down")}, "operator@example.com")

	executed, err := i.Execute(context.Background(), model.EmailMessage{
		From: "operator@example.com",
		Body: "STOP somestore.com",
	})
	require.NoError(t, err)
	assert.True(t, executed)
}

// Package fetcher retrieves mail for the monitored accounts.
package fetcher

import (
	"context"
	"time"

	"receipt-sentinel/internal/model"
)

// MailFetcher retrieves messages for one account. Implementations bound
// their network calls with the supplied context.
type MailFetcher interface {
	// Fetch returns messages received since the given time, tagged with the
	// account they came from, at most limit of them (0 means no limit).
	Fetch(ctx context.Context, account model.Account, since time.Time, limit int) ([]model.EmailMessage, error)
	// FetchByID returns a single message by its message identifier, or nil
	// when the message no longer exists.
	FetchByID(ctx context.Context, account model.Account, messageID string) (*model.EmailMessage, error)
	Close() error
}

// AccountDirectory lists the mailboxes to poll.
type AccountDirectory interface {
	ListActive() []model.Account
}

// StaticDirectory serves accounts from configuration.
type StaticDirectory struct {
	accounts []model.Account
}

func NewStaticDirectory(accounts []model.Account) *StaticDirectory {
	return &StaticDirectory{accounts: accounts}
}

func (d *StaticDirectory) ListActive() []model.Account {
	return d.accounts
}

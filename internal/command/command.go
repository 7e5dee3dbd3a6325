// Package command interprets operator emails: the forwarding target can
// steer preferences by mailing STOP/MORE/SETTINGS commands back.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"receipt-sentinel/internal/model"
	"receipt-sentinel/internal/repository"
)

// Notifier sends a plain notification mail to the operator. The forwarder
// implements it.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Interpreter parses and executes operator commands.
type Interpreter struct {
	repo     *repository.Repository
	notifier Notifier
	sender   string
}

func NewInterpreter(repo *repository.Repository, notifier Notifier, commandSender string) *Interpreter {
	return &Interpreter{
		repo:     repo,
		notifier: notifier,
		sender:   strings.ToLower(strings.TrimSpace(commandSender)),
	}
}

// IsCommandEmail reports whether the email comes from the configured
// operator address. With no operator configured nothing is a command.
func (i *Interpreter) IsCommandEmail(email model.EmailMessage) bool {
	if i.sender == "" {
		return false
	}
	return strings.Contains(strings.ToLower(email.From), i.sender)
}

// Execute scans the body for a command and runs the first one found:
//
//	STOP <item>   block a sender or category
//	MORE <item>   always forward a sender or category
//	SETTINGS      mail back the current preferences
//
// Only one command per email is honored. Returns whether a command ran.
func (i *Interpreter) Execute(ctx context.Context, email model.EmailMessage) (bool, error) {
	for _, line := range strings.Split(email.Body, "\n") {
		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}

		cmd := strings.ToUpper(parts[0])
		args := strings.Join(parts[1:], " ")

		switch cmd {
		case "STOP":
			if args == "" {
				continue
			}
			if _, err := i.repo.AddPreference(args, model.PrefBlockedSender); err != nil {
				return false, fmt.Errorf("STOP command failed: %w", err)
			}
			i.notify(ctx, fmt.Sprintf("Blocked sender/category: %s", args))
			return true, nil

		case "MORE":
			if args == "" {
				continue
			}
			if _, err := i.repo.AddPreference(args, model.PrefAlwaysForward); err != nil {
				return false, fmt.Errorf("MORE command failed: %w", err)
			}
			i.notify(ctx, fmt.Sprintf("Always forwarding: %s", args))
			return true, nil

		case "SETTINGS":
			i.notify(ctx, i.settingsSummary())
			return true, nil
		}
	}
	return false, nil
}

func (i *Interpreter) settingsSummary() string {
	prefs, err := i.repo.AllPreferences()
	if err != nil {
		logrus.Errorf("Failed to load preferences for settings summary: %v", err)
		return "Could not load preferences."
	}

	lines := []string{"Current preferences:"}
	for _, p := range prefs {
		lines = append(lines, fmt.Sprintf("- %s: %s", p.Type, p.Item))
	}
	if len(prefs) == 0 {
		lines = append(lines, "No active preferences.")
	}
	return strings.Join(lines, "\n")
}

// notify delivers a confirmation; failures are logged, never fatal to the
// command itself.
func (i *Interpreter) notify(ctx context.Context, body string) {
	if i.notifier == nil {
		return
	}
	if err := i.notifier.Notify(ctx, "Receipt Sentinel command confirmed", body); err != nil {
		logrus.Errorf("Failed to send command confirmation: %v", err)
	}
}

package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"receipt-sentinel/internal/config"
	"receipt-sentinel/internal/model"
)

// GmailAPIFetcher implements MailFetcher using the Gmail API. The configured
// OAuth2 credential must be authorized for every monitored account.
type GmailAPIFetcher struct {
	service *gmail.Service
}

// NewGmailAPIFetcher creates a Gmail API fetcher from the shared OAuth2
// credential.
func NewGmailAPIFetcher(cfg *config.MailConfig) (*GmailAPIFetcher, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &GmailAPIFetcher{service: service}, nil
}

// Fetch lists messages received since the given time for one account.
func (f *GmailAPIFetcher) Fetch(ctx context.Context, account model.Account, since time.Time, limit int) ([]model.EmailMessage, error) {
	call := f.service.Users.Messages.List(account.Email).
		Q(fmt.Sprintf("after:%d", since.Unix())).
		Context(ctx)
	if limit > 0 {
		call = call.MaxResults(int64(limit))
	}

	response, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var emails []model.EmailMessage
	for _, ref := range response.Messages {
		msg, err := f.service.Users.Messages.Get(account.Email, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			logrus.Warnf("Failed to get message %s: %v", ref.Id, err)
			continue
		}
		email, err := parseGmailMessage(msg)
		if err != nil {
			logrus.Warnf("Failed to parse message %s: %v", ref.Id, err)
			continue
		}
		emails = append(emails, email)
	}
	return emails, nil
}

// FetchByID retrieves one message by its Message-ID header.
func (f *GmailAPIFetcher) FetchByID(ctx context.Context, account model.Account, messageID string) (*model.EmailMessage, error) {
	call := f.service.Users.Messages.List(account.Email).
		Q(fmt.Sprintf("rfc822msgid:%s", messageID)).
		MaxResults(1).
		Context(ctx)
	response, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to search by message id: %w", err)
	}
	if len(response.Messages) == 0 {
		return nil, nil
	}

	msg, err := f.service.Users.Messages.Get(account.Email, response.Messages[0].Id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	email, err := parseGmailMessage(msg)
	if err != nil {
		return nil, err
	}
	return &email, nil
}

// Close closes the Gmail API fetcher
func (f *GmailAPIFetcher) Close() error {
	return nil
}

// parseGmailMessage maps a Gmail API message onto the EmailMessage value type.
func parseGmailMessage(msg *gmail.Message) (model.EmailMessage, error) {
	var email model.EmailMessage

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Message-ID", "Message-Id":
			email.MessageID = header.Value
		case "Subject":
			email.Subject = header.Value
		case "From":
			email.From = header.Value
		case "Date":
			if t, err := time.Parse(time.RFC1123Z, header.Value); err == nil {
				email.Date = t
			}
		}
	}
	if email.Date.IsZero() {
		email.Date = time.Unix(0, msg.InternalDate*int64(time.Millisecond))
	}

	if err := parseGmailBody(msg.Payload, &email); err != nil {
		return email, err
	}
	return email, nil
}

// parseGmailBody recursively walks the message parts.
func parseGmailBody(part *gmail.MessagePart, email *model.EmailMessage) error {
	if part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return fmt.Errorf("failed to decode body data: %w", err)
		}
		switch part.MimeType {
		case "text/plain":
			email.Body = string(data)
		case "text/html":
			email.HTMLBody = string(data)
		}
	}
	for _, subPart := range part.Parts {
		if err := parseGmailBody(subPart, email); err != nil {
			return err
		}
	}
	return nil
}

// Package forwarder delivers accepted receipts and operator notifications
// through the Gmail API.
package forwarder

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"receipt-sentinel/internal/config"
	"receipt-sentinel/internal/model"
)

const maxSendAttempts = 3

// EmailForwarder sends mail as the configured sender address.
type EmailForwarder struct {
	service      *gmail.Service
	senderEmail  string
	notifyTarget string
	baseURL      string
}

// New creates a forwarder. baseURL is the public address of this service,
// used to build the action links embedded in forwarded mail.
func New(cfg *config.MailConfig, baseURL string) (*EmailForwarder, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &EmailForwarder{
		service:      service,
		senderEmail:  cfg.SenderEmail,
		notifyTarget: cfg.ForwardTarget,
		baseURL:      strings.TrimRight(baseURL, "/"),
	}, nil
}

// Forward sends the email to the target address, wrapped with the action
// header (block / always forward / settings) and the original content.
// Rate-limited sends are retried with backoff; other errors are not.
func (f *EmailForwarder) Forward(ctx context.Context, email model.EmailMessage, target string) error {
	raw := f.buildForwardedEmail(email, target)
	return f.send(ctx, raw, email.MessageID, target)
}

// Notify sends a plain-text notification to the operator address; used for
// command confirmations and the settings summary.
func (f *EmailForwarder) Notify(ctx context.Context, subject, body string) error {
	if f.notifyTarget == "" {
		return fmt.Errorf("no notification target configured")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", f.senderEmail)
	fmt.Fprintf(&b, "To: %s\r\n", f.notifyTarget)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return f.send(ctx, b.String(), "", f.notifyTarget)
}

func (f *EmailForwarder) send(ctx context.Context, raw, originalID, target string) error {
	message := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		_, err := f.service.Users.Messages.Send(f.senderEmail, message).Context(ctx).Do()
		if err == nil {
			logrus.Infof("Sent email %s to %s", originalID, target)
			return nil
		}
		lastErr = err

		// Only rate limiting is worth retrying.
		if !strings.Contains(err.Error(), "quota") && !strings.Contains(err.Error(), "rate") {
			break
		}
		wait := time.Duration(attempt*attempt) * time.Second
		logrus.Warnf("Rate limited sending email (attempt %d/%d), waiting %v", attempt, maxSendAttempts, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("failed to send email after %d attempts: %w", maxSendAttempts, lastErr)
}

// buildForwardedEmail assembles the MIME message: headers referencing the
// original, the HTML action wrapper, then the original body.
func (f *EmailForwarder) buildForwardedEmail(email model.EmailMessage, target string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", f.senderEmail)
	fmt.Fprintf(&b, "To: %s\r\n", target)
	fmt.Fprintf(&b, "Subject: Fwd: %s\r\n", email.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&b, "X-Original-From: %s\r\n", email.From)
	fmt.Fprintf(&b, "X-Original-Message-ID: %s\r\n", email.MessageID)
	fmt.Fprintf(&b, "X-Forwarded-At: %s\r\n", time.Now().Format(time.RFC3339))
	b.WriteString("\r\n")

	b.WriteString(f.renderActionHeader(email))

	body := email.HTMLBody
	if body == "" {
		body = "<pre>" + html.EscapeString(email.Body) + "</pre>"
	}
	b.WriteString(body)
	return b.String()
}

// renderActionHeader builds the block/always-forward/settings banner shown
// above the forwarded content.
func (f *EmailForwarder) renderActionHeader(email model.EmailMessage) string {
	simpleName := senderSimpleName(email.From)
	item := url.QueryEscape(simpleName)
	linkStop := fmt.Sprintf("%s/api/actions/block?item=%s", f.baseURL, item)
	linkMore := fmt.Sprintf("%s/api/actions/allow?item=%s", f.baseURL, item)
	linkSettings := fmt.Sprintf("%s/settings", f.baseURL)

	return fmt.Sprintf(`<div style="background-color:#f4f4f5;padding:16px;border-radius:8px;margin-bottom:20px;border:1px solid #e4e4e7;font-family:sans-serif;">
<div style="font-weight:bold;color:#18181b;margin-bottom:12px;">Receipt Sentinel: %s</div>
<div>
<a href="%s" style="background-color:#ef4444;color:white;padding:8px 16px;border-radius:6px;text-decoration:none;">Block %s</a>
<a href="%s" style="background-color:#22c55e;color:white;padding:8px 16px;border-radius:6px;text-decoration:none;">Always Forward</a>
<a href="%s" style="background-color:#71717a;color:white;padding:8px 16px;border-radius:6px;text-decoration:none;">Settings</a>
</div>
<div style="font-size:12px;color:#71717a;margin-top:12px;">Received: %s</div>
</div>
<hr style="border:0;border-top:1px solid #e5e7eb;margin:20px 0;">
`,
		html.EscapeString(simpleName),
		linkStop, html.EscapeString(simpleName),
		linkMore,
		linkSettings,
		email.Date.Format(time.RFC1123))
}

// senderSimpleName extracts a short, link-safe name from the sender address:
// the domain's first label for addresses, the whole string otherwise.
func senderSimpleName(sender string) string {
	addr := sender
	if start := strings.IndexByte(addr, '<'); start >= 0 {
		if end := strings.IndexByte(addr[start:], '>'); end > 0 {
			addr = addr[start+1 : start+end]
		}
	}
	if at := strings.IndexByte(addr, '@'); at >= 0 {
		domain := addr[at+1:]
		if dot := strings.IndexByte(domain, '.'); dot > 0 {
			return domain[:dot]
		}
		return domain
	}
	return strings.TrimSpace(addr)
}

// Close closes the forwarder (no-op for the Gmail API).
func (f *EmailForwarder) Close() error {
	return nil
}

package fetcher

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/sirupsen/logrus"

	"receipt-sentinel/internal/logutil"
	"receipt-sentinel/internal/model"
)

// IMAPFetcher implements MailFetcher over IMAP. Connections are opened per
// fetch because each account carries its own credentials and provider.
type IMAPFetcher struct{}

func NewIMAPFetcher() *IMAPFetcher {
	return &IMAPFetcher{}
}

// imapServer maps an account's provider to its IMAP endpoint.
func imapServer(provider string) string {
	switch {
	case strings.Contains(strings.ToLower(provider), "outlook"),
		strings.Contains(strings.ToLower(provider), "hotmail"):
		return "outlook.office365.com:993"
	case strings.Contains(strings.ToLower(provider), "yahoo"):
		return "imap.mail.yahoo.com:993"
	case strings.Contains(strings.ToLower(provider), "icloud"):
		return "imap.mail.me.com:993"
	default:
		return "imap.gmail.com:993"
	}
}

// Fetch returns messages received since the given time, newest last. When
// limit is positive only the most recent limit messages are fetched.
func (f *IMAPFetcher) Fetch(ctx context.Context, account model.Account, since time.Time, limit int) ([]model.EmailMessage, error) {
	c, err := f.connect(account)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	uids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	return f.fetchSet(c, uids)
}

// FetchByID looks a single message up by its Message-ID header.
func (f *IMAPFetcher) FetchByID(ctx context.Context, account model.Account, messageID string) (*model.EmailMessage, error) {
	c, err := f.connect(account)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-Id", messageID)
	uids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search by message id: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	emails, err := f.fetchSet(c, uids[:1])
	if err != nil || len(emails) == 0 {
		return nil, err
	}
	return &emails[0], nil
}

func (f *IMAPFetcher) Close() error {
	return nil
}

func (f *IMAPFetcher) connect(account model.Account) (*client.Client, error) {
	addr := imapServer(account.Provider)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if err := c.Login(account.Email, account.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login account %s: %w", logutil.RedactEmail(account.Email), err)
	}
	return c, nil
}

func (f *IMAPFetcher) fetchSet(c *client.Client, uids []uint32) ([]model.EmailMessage, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchBody, imap.FetchUid}, messages)
	}()

	var emails []model.EmailMessage
	for msg := range messages {
		email, err := parseIMAPMessage(msg)
		if err != nil {
			logrus.Warnf("Failed to parse IMAP message: %v", err)
			continue
		}
		emails = append(emails, email)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return emails, nil
}

// parseIMAPMessage maps an IMAP message onto the EmailMessage value type.
func parseIMAPMessage(msg *imap.Message) (model.EmailMessage, error) {
	var email model.EmailMessage

	if msg.Envelope != nil {
		email.MessageID = msg.Envelope.MessageId
		email.Subject = msg.Envelope.Subject
		email.Date = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			email.From = msg.Envelope.From[0].Address()
		}
	}

	if err := parseIMAPBody(msg, &email); err != nil {
		return email, err
	}
	return email, nil
}

func parseIMAPBody(msg *imap.Message, email *model.EmailMessage) error {
	if msg.Body == nil {
		return nil
	}

	section := &imap.BodySectionName{}
	r := msg.GetBody(section)
	if r == nil {
		return fmt.Errorf("failed to get message body")
	}

	entity, err := message.Read(r)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to read part: %w", err)
			}
			content, err := io.ReadAll(p.Body)
			if err != nil {
				return fmt.Errorf("failed to read part body: %w", err)
			}
			assignContent(p.Header.Get("Content-Type"), string(content), email)
		}
		return nil
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return fmt.Errorf("failed to read message body: %w", err)
	}
	assignContent(entity.Header.Get("Content-Type"), string(content), email)
	return nil
}

func assignContent(contentType, content string, email *model.EmailMessage) {
	if strings.Contains(contentType, "text/plain") {
		email.Body = content
	} else if strings.Contains(contentType, "text/html") {
		email.HTMLBody = content
	}
}

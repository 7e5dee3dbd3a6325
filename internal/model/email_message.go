package model

import (
	"time"
)

// EmailMessage is the single in-memory representation of a fetched email.
// Every component consumes this type; fetchers are responsible for mapping
// their transport's message shape onto it.
type EmailMessage struct {
	MessageID    string    `json:"message_id"`
	Subject      string    `json:"subject"`
	From         string    `json:"from"`
	Body         string    `json:"body"`
	HTMLBody     string    `json:"html_body"`
	Date         time.Time `json:"date"`
	AccountEmail string    `json:"account_email"`
}

// Account identifies one monitored mailbox.
type Account struct {
	Email    string `json:"email" mapstructure:"email"`
	Provider string `json:"provider" mapstructure:"provider"`
	Password string `json:"-" mapstructure:"password"`
}

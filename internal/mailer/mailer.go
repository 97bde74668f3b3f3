package mailer

import "context"

// Message is one transactional email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

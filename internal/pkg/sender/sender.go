// Package sender holds the outbound channel capabilities. Implementations
// make exactly one attempt within a bounded timeout; retry happens only at
// the next natural scheduling point.
package sender

import "context"

// EmailSender delivers one email message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SMSSender delivers one SMS message.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

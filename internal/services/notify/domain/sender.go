package domain

import (
	"context"
	"log"
)

// LogSender writes outbound messages to the process log. It stands in for a
// real mail gateway in local and test environments.
type LogSender struct{}

// Send logs the message and reports success.
func (LogSender) Send(_ context.Context, email Email) error {
	log.Printf("delivery to=%s subject=%q", email.To, email.Subject)
	return nil
}

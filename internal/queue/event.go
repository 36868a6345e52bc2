// Package queue defines the notification payload exchanged over the message
// broker and the consumer that delivers it.
package queue

import (
	"time"

	"github.com/iliyamo/property-listings/internal/mailer"
)

// NotificationEvent asks the consumer to send one templated email. It is
// self-contained so the consumer never needs to query the database.
type NotificationEvent struct {
	Template    string            `json:"template"`
	To          string            `json:"to"`
	Data        map[string]string `json:"data,omitempty"`
	RequestedAt string            `json:"requested_at"`
}

// NewNotificationEvent wraps a mail message for publishing.
func NewNotificationEvent(msg mailer.Message) NotificationEvent {
	return NotificationEvent{
		Template:    msg.Template,
		To:          msg.To,
		Data:        msg.Data,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Message converts the event back into a mail message.
func (e NotificationEvent) Message() mailer.Message {
	return mailer.Message{Template: e.Template, To: e.To, Data: e.Data}
}

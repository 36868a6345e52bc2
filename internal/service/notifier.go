package service

import (
	"context"

	"github.com/iliyamo/property-listings/internal/mailer"
)

// Notifier delivers a templated email somehow: straight through SMTP or by
// way of the broker.
type Notifier interface {
	Notify(ctx context.Context, msg mailer.Message) error
}

// MailNotifier sends in-process. It is used when no broker is configured
// and by the queue consumer itself.
type MailNotifier struct {
	Mailer *mailer.Mailer
}

func (n MailNotifier) Notify(ctx context.Context, msg mailer.Message) error {
	return n.Mailer.Send(ctx, msg)
}

// Runner schedules best-effort work; *tasks.Runner implements it.
type Runner interface {
	Go(name string, fn func(ctx context.Context) error) error
}

// NotifyLater schedules msg on r. Scheduling failures are already counted
// by the runner, so the error is dropped here.
func NotifyLater(r Runner, n Notifier, msg mailer.Message) {
	if r == nil || n == nil || msg.To == "" {
		return
	}
	_ = r.Go("email:"+msg.Template, func(ctx context.Context) error {
		return n.Notify(ctx, msg)
	})
}

package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/property-listings/internal/mailer"
	"github.com/iliyamo/property-listings/internal/queue"
)

// QueuePublisher publishes notification events to RabbitMQ. Each publish
// opens its own connection; notifications are rare enough that a pooled
// connection is not worth its reconnect handling.
type QueuePublisher struct {
	url    string
	queue  string
	logger *zap.Logger
}

func NewQueuePublisher(url, queueName string, logger *zap.Logger) *QueuePublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueuePublisher{url: url, queue: queueName, logger: logger.Named("rabbitmq")}
}

// Notify implements Notifier by publishing msg as a persistent message on
// the notification queue.
func (p *QueuePublisher) Notify(ctx context.Context, msg mailer.Message) error {
	return p.Publish(ctx, queue.NewNotificationEvent(msg))
}

// Publish sends event to the durable notification queue. Errors are logged
// and returned so the background runner can count them.
func (p *QueuePublisher) Publish(ctx context.Context, event queue.NotificationEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		p.logger.Warn("queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.logger.Warn("publish failed", zap.Error(err), zap.String("template", event.Template))
		return err
	}
	return nil
}

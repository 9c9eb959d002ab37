// Package service holds outbound integrations used by the HTTP handlers.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/theatre-diary/internal/queue"
)

// ActivityPublisher sends diary activity to queue.ActivityQueue.  Each call
// dials its own connection; write traffic on a diary is low enough that a
// pooled channel is not worth the lifecycle handling.
type ActivityPublisher struct {
	URL     string
	Timeout time.Duration
}

// NewActivityPublisher returns a publisher with a 3s per-call timeout.
func NewActivityPublisher(url string) *ActivityPublisher {
	return &ActivityPublisher{URL: url, Timeout: 3 * time.Second}
}

// PublishActivity sends ev as a persistent JSON message.  Errors are logged
// and returned; callers treat them as non-fatal.
func (p *ActivityPublisher) PublishActivity(ctx context.Context, ev queue.ActivityEvent) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
	defer cancel()

	l := log.Ctx(ctx).With().Str("kind", ev.Kind).Uint64("play_id", ev.PlayID).Logger()

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.Timeout)})
	if err != nil {
		l.Warn().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		l.Warn().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.ActivityQueue, true, false, false, false, nil); err != nil {
		l.Warn().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", queue.ActivityQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		l.Warn().Err(err).Msg("rabbitmq: publish failed")
		return err
	}
	l.Debug().Msg("activity published")
	return nil
}

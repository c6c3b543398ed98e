package eventsvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/edutrack/backend/core"
)

const publishTimeout = 5 * time.Second

// RabbitMQPublisher sends each event to a topic exchange, routed by its name.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	channel  *amqp.Channel
	exchange string
	appName  string
}

var _ core.EventPublisher = (*RabbitMQPublisher)(nil)

// NewRabbitMQPublisher connects to the broker and declares the events exchange.
func NewRabbitMQPublisher(conf *core.Config) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(conf.AMQP.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}
	err = ch.ExchangeDeclare(
		conf.AMQP.Exchange, // name
		"topic",            // kind
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}
	return &RabbitMQPublisher{conn: conn, channel: ch, exchange: conf.AMQP.Exchange, appName: conf.AppName}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, events ...core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, evt := range events {
		body, err := json.Marshal(evt)
		if err != nil {
			return errors.Wrapf(err, "encoding event %q", evt.Name)
		}

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err = p.channel.PublishWithContext(
			publishCtx,
			p.exchange, // exchange
			evt.Name,   // routing key
			false,      // mandatory
			false,      // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    evt.OccurredAt,
				AppId:        p.appName,
				Type:         evt.Name,
			},
		)
		cancel()
		if err != nil {
			return errors.Wrapf(err, "publishing event %q", evt.Name)
		}
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return errors.Wrap(err, "closing channel")
	}
	return errors.Wrap(p.conn.Close(), "closing connection")
}

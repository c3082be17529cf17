package rabbitmq

import (
	"context"
	"encoding/json"
	amqp "github.com/rabbitmq/amqp091-go"
	"media-library/config"
	"media-library/dto"
)

// Publisher sends transcode requests to the external transcoding worker.
// It satisfies service.TranscodeRequester.
type Publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
	spec QueueSpec
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ, spec QueueSpec) *Publisher {
	return &Publisher{
		conn: conn,
		cfg:  cfg,
		spec: spec,
	}
}

func (p *Publisher) RequestTranscode(ctx context.Context, msg dto.TranscodeMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.publish(ctx, body)
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(p.spec.Exchange, p.cfg.Kind, true, false, false, false, nil); err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		p.spec.Exchange,
		p.spec.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

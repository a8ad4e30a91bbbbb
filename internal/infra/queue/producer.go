package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
)

// SyncRequest is one queued sync run.
type SyncRequest struct {
	ID    string `json:"id"`
	Mode  string `json:"mode"`
	Owner string `json:"owner,omitempty"`
}

type Producer struct {
	Ch *amqp.Channel
}

func NewProducer(ch *amqp.Channel) *Producer {
	return &Producer{Ch: ch}
}

func (p *Producer) PublishSyncRequest(ctx context.Context, req SyncRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	return p.Ch.PublishWithContext(ctx,
		"",        // default exchange
		QueueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

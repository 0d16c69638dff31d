package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oliulv/yc-eval-game/dto"
)

// PublishBackfillMessage enqueues one backfill request. The exchange
// declaration matches the consumer's so either side can start first.
func PublishBackfillMessage(ctx context.Context, conn *amqp.Connection, kind string, message dto.BackfillMessage) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(backfillExchange, kind, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		backfillExchange,
		backfillRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

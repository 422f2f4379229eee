package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer lee mensajes de la cola y los entrega con el Sender configurado.
type Consumer struct {
	logger *zap.Logger
	sender Sender
}

func NewConsumer(logger *zap.Logger, sender Sender) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{logger: logger, sender: sender}
}

// Run consume hasta que ctx termine o se cierre el canal.
func (c *Consumer) Run(ctx context.Context, ch *amqp.Channel, queue string) error {
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle confirma la entrega si se envió; un mensaje ilegible se descarta
// y un fallo de envío se reencola una sola vez.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error("discarding malformed email job", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := c.sender.Send(ctx, msg); err != nil {
		requeue := !d.Redelivered
		c.logger.Warn("email job delivery failed",
			zap.Error(err),
			zap.String("to", msg.To),
			zap.Bool("requeue", requeue),
		)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

package email

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpPublisher es el subconjunto de *amqp.Channel que usa AMQPSender.
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSender publica el mensaje en una cola durable; cmd/mailer lo entrega.
type AMQPSender struct {
	mu        sync.Mutex
	publisher amqpPublisher
	queue     string
}

// NewAMQPSender abre un canal sobre conn y declara la cola.
func NewAMQPSender(conn *amqp.Connection, queue string) (*AMQPSender, *amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := DeclareQueue(ch, queue); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	return &AMQPSender{publisher: ch, queue: queue}, ch, nil
}

// DeclareQueue declara la cola durable compartida por productor y consumidor.
func DeclareQueue(ch *amqp.Channel, queue string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %q: %w", queue, err)
	}
	return q, nil
}

func (s *AMQPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publisher.PublishWithContext(ctx,
		"",      // exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

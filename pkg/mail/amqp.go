package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultQueueName = "convoai.email.verification"

// AMQPQueue publishes and consumes verification email jobs over a durable
// RabbitMQ queue.
type AMQPQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewAMQPQueue dials the broker and declares the job queue.
func NewAMQPQueue(url, queue string) (*AMQPQueue, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	if strings.TrimSpace(queue) == "" {
		queue = defaultQueueName
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp declare queue: %w", err)
	}
	return &AMQPQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Publish enqueues one job as a persistent JSON message.
func (q *AMQPQueue) Publish(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Consume delivers jobs to handler until ctx is cancelled. A handler error
// requeues the message once; a second failure drops it so a broken address
// cannot wedge the queue.
func (q *AMQPQueue) Consume(ctx context.Context, handler func(context.Context, Job) error) error {
	if err := q.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("amqp qos: %w", err)
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			var job Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				slog.Error("mail job decode failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			if err := handler(ctx, job); err != nil {
				slog.Error("mail job failed", "email", job.Email, "redelivered", d.Redelivered, "error", err)
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close releases the channel and connection.
func (q *AMQPQueue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

package rabbitmq

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/career-chat/internal/upload"
)

// CleanupMessage asks the worker to remove one stored upload.
type CleanupMessage struct {
	UploadID string `json:"upload_id"`
}

// Queue names derived from the main queue.
func RetryQueue(queue string) string { return queue + ".retry" }
func DeadQueue(queue string) string  { return queue + ".dlq" }

// Declare sets up the cleanup topology on ch:
//
//	<queue>.retry  per-message TTL, dead-letters into <queue>
//	<queue>        consumed by the worker, rejects go to <queue>.dlq
//	<queue>.dlq
func Declare(ch *amqp.Channel, queue string) error {
	mainQ := queue
	retryQ := RetryQueue(queue)
	dlqQ := DeadQueue(queue)

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Delay queue: nobody consumes it, expired messages move to the main queue
	if _, err := ch.QueueDeclare(
		retryQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": mainQ,
		},
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	if _, err := ch.QueueDeclare(
		mainQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	); err != nil {
		return err
	}
	return nil
}

// Publisher schedules delayed upload cleanups. It implements
// upload.Scheduler.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

var _ upload.Scheduler = (*Publisher)(nil)

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := Declare(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// ScheduleCleanup parks a cleanup message in the delay queue; it reaches the
// worker once after has elapsed.
func (p *Publisher) ScheduleCleanup(ctx context.Context, uploadID string, after time.Duration) error {
	pub, err := cleanupPublishing(uploadID, after, time.Now())
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",                  // default exchange
		RetryQueue(p.queue), // delay queue
		false,
		false,
		pub,
	)
}

func cleanupPublishing(uploadID string, after time.Duration, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(CleanupMessage{UploadID: uploadID})
	if err != nil {
		return amqp.Publishing{}, err
	}
	ms := after.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    now,
		Expiration:   strconv.FormatInt(ms, 10),
	}, nil
}

package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"
)

// RabbitQueue publishes and consumes work items over RabbitMQ. Delayed
// delivery (follow-ups, retry backoff) uses a per-queue wait queue with
// per-message TTL that dead-letters back onto the main queue.
type RabbitQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitQueue(url string) (*RabbitQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	q := &RabbitQueue{conn: conn, ch: ch}
	for _, name := range []string{EmailDraftsQueue, SendEmailQueue} {
		if err := q.declare(name); err != nil {
			q.Close()
			return nil, err
		}
	}
	return q, nil
}

func (q *RabbitQueue) declare(name string) error {
	if _, err := q.ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	// Messages expiring in the wait queue are routed back to the main queue.
	if _, err := q.ch.QueueDeclare(
		name+".wait",
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": name,
		},
	); err != nil {
		return fmt.Errorf("failed to declare wait queue for %s: %w", name, err)
	}
	return nil
}

func (q *RabbitQueue) publish(routingKey string, msg Message, headers amqp.Table, expiration string) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.ch.Publish(
		"",
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Headers:      headers,
			Expiration:   expiration,
		},
	)
}

func (q *RabbitQueue) Publish(topic string, msg Message) error {
	return q.publish(topic, msg, nil, "")
}

func (q *RabbitQueue) PublishDelayed(topic string, msg Message, delay time.Duration) error {
	expiration := fmt.Sprintf("%d", delay.Milliseconds())
	return q.publish(topic+".wait", msg, nil, expiration)
}

// Consume processes the topic with the given number of parallel workers.
// Failed messages are re-published onto the wait queue with backoff and an
// incremented x-retry-count header; after MaxAttempts they are dropped.
// Blocks until the channel closes.
func (q *RabbitQueue) Consume(topic string, concurrency int, handler Handler) error {
	if err := q.ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	done := make(chan struct{})
	for i := 0; i < concurrency; i++ {
		go func() {
			for d := range msgs {
				q.handleDelivery(topic, d, handler)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < concurrency; i++ {
		<-done
	}
	return nil
}

func (q *RabbitQueue) handleDelivery(topic string, d amqp.Delivery, handler Handler) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Println("Invalid job body, dropping:", err)
		d.Ack(false)
		return
	}

	err := handler(msg)
	if err == nil {
		d.Ack(false)
		return
	}

	attempt := retryCount(d.Headers) + 1
	log.Printf("Job failed (attempt %d/%d) topic=%s job=%s campaign=%s lead=%s: %v",
		attempt, MaxAttempts, topic, msg.Job, msg.CampaignID, msg.LeadID, err)

	if attempt >= MaxAttempts {
		log.Printf("Job permanently failed after %d attempts: %+v", MaxAttempts, msg)
		d.Ack(false) // dead, no requeue
		return
	}

	headers := amqp.Table{"x-retry-count": int32(attempt)}
	expiration := fmt.Sprintf("%d", Backoff(attempt).Milliseconds())
	if pubErr := q.publish(topic+".wait", msg, headers, expiration); pubErr != nil {
		log.Println("⚠️ Failed to schedule retry, requeueing immediately:", pubErr)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

// retryCount reads x-retry-count; amqp decodes numbers as varying int widths.
func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers["x-retry-count"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func (q *RabbitQueue) Close() {
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}

var _ Queue = (*RabbitQueue)(nil)

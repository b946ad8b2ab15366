package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultQueueName is the default queue name
	DefaultQueueName = "weekly_report_jobs"
	// DefaultDLQName is the default dead letter queue name
	DefaultDLQName = "weekly_report_jobs_dlq"
	// DefaultExchangeName is the default exchange name
	DefaultExchangeName = "taskflow_jobs"
	// DefaultDelayedExchangeName is the default delayed exchange name (requires plugin)
	DefaultDelayedExchangeName = "taskflow_jobs_delayed"

	jobsRoutingKey = "jobs"
	dlqRoutingKey  = "dlq"
)

// RabbitMQQueue implements JobQueue using RabbitMQ
type RabbitMQQueue struct {
	conn   *amqp.Connection
	logger *zap.Logger

	// mu guards channel; publishes come from HTTP handlers and the scheduler
	mu      sync.Mutex
	channel *amqp.Channel

	queueName           string
	dlqName             string
	exchangeName        string
	delayedExchangeName string
	delayedAvailable    bool
}

var (
	_ JobQueue  = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
)

// NewRabbitMQQueue connects to amqpURL and declares the exchanges and queues
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue := &RabbitMQQueue{
		conn:                conn,
		logger:              logger,
		channel:             ch,
		queueName:           DefaultQueueName,
		dlqName:             DefaultDLQName,
		exchangeName:        DefaultExchangeName,
		delayedExchangeName: DefaultDelayedExchangeName,
	}

	if err := queue.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	return queue, nil
}

// setup configures exchanges and queues
func (q *RabbitMQQueue) setup() error {
	// Declare delayed exchange (requires rabbitmq_delayed_message_exchange plugin)
	err := q.channel.ExchangeDeclare(
		q.delayedExchangeName,
		"x-delayed-message",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	)
	if err != nil {
		// A failed declare closes the channel
		if q.channel.IsClosed() {
			newCh, openErr := q.conn.Channel()
			if openErr != nil {
				return fmt.Errorf("failed to reopen channel after delayed exchange error: %w", openErr)
			}
			q.channel = newCh
		}
		q.logger.Warn("delayed_exchange_unavailable",
			zap.String("exchange", q.delayedExchangeName),
			zap.Error(err),
		)
	} else {
		q.delayedAvailable = true
	}

	if err := q.channel.ExchangeDeclare(q.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := q.channel.QueueDeclare(q.dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := q.channel.QueueBind(q.dlqName, dlqRoutingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	// Main queue dead-letters rejected jobs into the DLQ
	queueArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	if _, err := q.channel.QueueDeclare(q.queueName, true, false, false, false, queueArgs); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := q.channel.QueueBind(q.queueName, jobsRoutingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to exchange: %w", err)
	}
	if q.delayedAvailable {
		if err := q.channel.QueueBind(q.queueName, jobsRoutingKey, q.delayedExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to delayed exchange: %w", err)
		}
	}

	return nil
}

// publishing builds the AMQP message for job at now and picks its exchange
func (q *RabbitMQQueue) publishing(job *Job, now time.Time) (string, amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("failed to marshal job: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Type:         string(job.Type),
		Timestamp:    job.CreatedAt,
	}

	// Expired jobs are dropped by the broker
	if job.NotAfter != nil {
		if ttl := job.NotAfter.Sub(now); ttl > 0 {
			msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}
	}

	exchange := q.exchangeName
	if job.NotBefore != nil && q.delayedAvailable {
		if delay := job.NotBefore.Sub(now); delay > 0 {
			exchange = q.delayedExchangeName
			msg.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
		}
	}
	return exchange, msg, nil
}

// Enqueue adds a job to the queue
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	exchange, msg, err := q.publishing(job, time.Now())
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.channel.PublishWithContext(ctx, exchange, jobsRoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	q.logger.Debug("job_enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("user_id", job.UserID.String()),
		zap.Int("retry_count", job.RetryCount),
	)
	return nil
}

// Consume returns a channel of messages from the queue using async delivery
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan MessageInterface, <-chan error, error) {
	if prefetchCount < 1 {
		prefetchCount = 1
	}

	// Consumers get their own channel
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	// prefetchCount=1 gives each worker one message at a time (fair dispatch)
	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.queueName,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack (false = manual ack required)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan MessageInterface, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					// Channel closed (connection lost)
					errChan <- errors.New("delivery channel closed")
					return
				}

				var job Job
				if err := json.Unmarshal(delivery.Body, &job); err != nil {
					// Invalid message, send to DLQ
					_ = delivery.Nack(false, false)
					q.logger.Warn("invalid_job_dead_lettered",
						zap.String("message_id", delivery.MessageId),
						zap.Error(err),
					)
					continue
				}

				now := time.Now()
				if job.IsExpired(now) {
					// A report for a week that has ended is not worth producing
					_ = delivery.Ack(false)
					q.logger.Info("expired_job_dropped",
						zap.String("job_id", job.ID.String()),
						zap.String("user_id", job.UserID.String()),
					)
					continue
				}
				if !job.ShouldProcess(now) {
					// Not ready yet, requeue for later
					_ = delivery.Nack(false, true)
					continue
				}

				msg := &Message{
					Job:         &job,
					DeliveryTag: delivery.DeliveryTag,
					Channel:     consumeCh,
				}

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// PurgeOlderThan drops dead-lettered jobs created more than retention ago.
// The DLQ is read in order, so it stops at the first newer message.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	purged := 0
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		msg, ok, err := q.channel.Get(q.dlqName, false)
		if err != nil {
			return purged, fmt.Errorf("failed to read DLQ: %w", err)
		}
		if !ok {
			return purged, nil
		}
		if !msg.Timestamp.IsZero() && msg.Timestamp.After(cutoff) {
			if err := msg.Nack(false, true); err != nil {
				return purged, fmt.Errorf("failed to requeue DLQ message: %w", err)
			}
			return purged, nil
		}
		if err := msg.Ack(false); err != nil {
			return purged, fmt.Errorf("failed to purge DLQ message: %w", err)
		}
		purged++
	}
}

// HealthCheck verifies the connection is open and the queue still exists
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}

	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclarePassive(q.queueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}); err != nil {
		return fmt.Errorf("queue %s unavailable: %w", q.queueName, err)
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

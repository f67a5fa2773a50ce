// Package amqp carries the two broker-backed flows: the fanout exchange
// that fans preference changes out to every session (across processes),
// and the durable queue feeding the spend-log backup worker.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"moneymanager/internal/prefs"
)

type Client struct {
	conn          *amqp091.Connection
	channel       *amqp091.Channel
	prefsExchange string
	backupQueue   string
}

func NewClient(url, prefsExchange, backupQueue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:          conn,
		channel:       channel,
		prefsExchange: prefsExchange,
		backupQueue:   backupQueue,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	// Fanout: every subscriber sees every change, filtering is done
	// client-side in the mirror handlers.
	err := c.channel.ExchangeDeclare(
		c.prefsExchange,
		"fanout",
		false, // not durable, change events are ephemeral
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare preferences exchange: %w", err)
	}

	// Backup messages must survive a broker restart.
	_, err = c.channel.QueueDeclare(
		c.backupQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare backup queue: %w", err)
	}

	return nil
}

// PublishChange fans a preference change out to all subscribers.
func (c *Client) PublishChange(ctx context.Context, ev prefs.ChangeEvent) error {
	body, err := NewChangeMessage(ev).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal change message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.prefsExchange,
		"", // fanout ignores the routing key
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish change message: %w", err)
	}

	slog.DebugContext(ctx, "Published preference change",
		"table", ev.Table,
		"kind", string(ev.Kind),
		"user_id", ev.Row.UserID)
	return nil
}

// Subscribe binds a fresh server-named queue to the fanout exchange and
// delivers decoded events for the given table to handler on a dedicated
// goroutine. The returned subscription survives double-unsubscribe.
func (c *Client) Subscribe(table string, handler func(prefs.ChangeEvent)) (prefs.Subscription, error) {
	q, err := c.channel.QueueDeclare(
		"",    // server-named
		false, // not durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare subscriber queue: %w", err)
	}

	if err := c.channel.QueueBind(q.Name, "", c.prefsExchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind subscriber queue: %w", err)
	}

	consumerTag := "prefs-" + uuid.NewString()
	deliveries, err := c.channel.Consume(
		q.Name,
		consumerTag,
		true, // auto-ack, losing a change event only delays a refresh
		true, // exclusive
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume subscriber queue: %w", err)
	}

	go func() {
		for d := range deliveries {
			msg, err := ChangeMessageFromJSON(d.Body)
			if err != nil {
				slog.Warn("Dropping undecodable change message", "error", err)
				continue
			}
			if msg.Table != table {
				continue
			}
			handler(msg.Event())
		}
	}()

	return &subscription{cancel: func() {
		if err := c.channel.Cancel(consumerTag, false); err != nil {
			slog.Warn("Cancel consumer failed", "consumer", consumerTag, "error", err)
		}
	}}, nil
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// PublishSpendBackup enqueues a spend log for export by the worker.
func (c *Client) PublishSpendBackup(ctx context.Context, id int64) error {
	body, err := NewSpendBackupMessage(id).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal backup message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		"", // default exchange
		c.backupQueue,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish backup message: %w", err)
	}

	slog.InfoContext(ctx, "Published spend backup message", "id", id, "queue", c.backupQueue)
	return nil
}

// ConsumeSpendBackup processes backup messages until ctx is cancelled.
// Handler errors requeue the message; undecodable messages are dropped.
func (c *Client) ConsumeSpendBackup(ctx context.Context, handler func(*SpendBackupMessage) error) error {
	deliveries, err := c.channel.Consume(
		c.backupQueue,
		"",    // generated consumer tag
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming spend backup messages", "queue", c.backupQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping backup consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := SpendBackupMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal backup message", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle backup message", "error", err, "id", msg.ID)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

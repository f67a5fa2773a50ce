// Package backend selects the change-feed transport: a RabbitMQ broker
// when AMQP_URL is set, otherwise the in-process feed for single-node
// deployments. The HTTP server and the backup worker both build their
// transport through here so the choice lives in one place.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"moneymanager/internal/amqp"
	"moneymanager/internal/config"
	"moneymanager/internal/feed"
	"moneymanager/internal/prefs"
)

// Transport bundles the feed endpoints a process needs. Backup is nil
// when no broker is configured; callers treat that as "queue disabled".
type Transport struct {
	Feed      prefs.ChangeFeed
	Publisher feed.Publisher
	Backup    *amqp.Client

	closeFn func() error
}

// Close releases the broker connection, if any.
func (t *Transport) Close() error {
	if t.closeFn != nil {
		return t.closeFn()
	}
	return nil
}

// New builds the transport for the given configuration.
func New(_ context.Context, cfg *config.Config) (*Transport, error) {
	if cfg.AMQPURL == "" {
		slog.Info("No AMQP URL configured, using in-process change feed")
		mem := feed.NewMemory()
		return &Transport{Feed: mem, Publisher: mem}, nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPPrefsExchange, cfg.AMQPBackupQueue)
	if err != nil {
		return nil, fmt.Errorf("connect AMQP: %w", err)
	}

	slog.Info("Connected to AMQP broker",
		"exchange", cfg.AMQPPrefsExchange,
		"queue", cfg.AMQPBackupQueue)

	return &Transport{
		Feed:      client,
		Publisher: client,
		Backup:    client,
		closeFn:   client.Close,
	}, nil
}

// Package kafkaconsumer applies path refresh events from Kafka.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	obs "github.com/mohammed-shakir/passmap/internal/core/observability"
	mylog "github.com/mohammed-shakir/passmap/internal/logger"
	"github.com/mohammed-shakir/passmap/internal/refresh"
)

type Consumer struct {
	cfg      Config
	logger   *slog.Logger
	zlog     *zerolog.Logger
	reloader refresh.Reloader
	dedupe   *generationDedupe
}

// New builds a consumer. zl may be nil, in which case structured consumer
// records are discarded.
func New(cfg Config, logger *slog.Logger, zl *zerolog.Logger, r refresh.Reloader) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	base := mylog.WithComponent(context.Background(), "refresh_consumer")
	return &Consumer{
		cfg:      cfg,
		logger:   logger,
		zlog:     mylog.FromContext(base, zl),
		reloader: r,
		dedupe:   newGenerationDedupe(cfg.DedupeSize),
	}
}

// Start consumes refresh events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.reloader == nil {
		return errors.New("kafkaconsumer: missing reloader")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" {
		return errors.New("kafkaconsumer: brokers and topic are required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("refresh consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil && ctx.Err() == nil {
			c.logger.Error("consumer error", "err", err)
			c.zlog.Error().Err(err).
				Strs("brokers", c.cfg.Brokers).
				Str("topic", c.cfg.Topic).
				Msg("kafka consumer error")
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
		if ctx.Err() != nil {
			c.logger.Info("refresh consumer shutting down")
			return nil
		}
	}
}

// ProcessOne applies one message. Malformed and already-applied events are
// acknowledged without work; a failed reload is returned so it is retried.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var ev refresh.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return c.drop(ctx, msg, "decode", err)
	}
	if err := ev.Validate(); err != nil {
		return c.drop(ctx, msg, "validate", err)
	}

	gen := ev.GeneratedAt.UnixNano()
	if c.dedupe.stale(ev.Source, gen) {
		obs.IncRefreshEvent("duplicate")
		c.logger.Debug("refresh already applied", "source", ev.Source, "generated_at", ev.GeneratedAt)
		return nil
	}

	if err := c.reloader.Reload(ctx); err != nil {
		obs.IncRefreshEvent("error")
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("kind", "reload").
			Str("source", ev.Source).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("refresh failed")
		return fmt.Errorf("reload: %w", err)
	}
	c.dedupe.commit(ev.Source, gen)

	obs.IncRefreshEvent("applied")
	mylog.FromContext(ctx, c.zlog).Info().
		Str("event", "refresh").
		Str("source", ev.Source).
		Time("generated_at", ev.GeneratedAt).
		Dur("took", time.Since(start)).
		Msg("paths reloaded")
	return nil
}

func (c *Consumer) drop(ctx context.Context, msg *sarama.ConsumerMessage, kind string, err error) error {
	obs.IncRefreshEvent("invalid")
	mylog.FromContext(ctx, c.zlog).Warn().Err(err).
		Str("kind", kind).
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("refresh event dropped")
	return nil
}

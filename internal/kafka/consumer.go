package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/points-ledger/internal/config"
	"github.com/points-ledger/internal/domain"
)

const batchSubmitTimeout = 10 * time.Second

// ScoreHandler records a batch of plays and reports how many were accepted.
type ScoreHandler interface {
	SubmitScoreBatch(ctx context.Context, batch []domain.IdentifiedSubmission) (int, error)
}

// Consumer feeds play results from a Kafka topic into the ledger in batches.
type Consumer struct {
	config  *config.KafkaConfig
	handler ScoreHandler
	logger  *slog.Logger
	group   sarama.ConsumerGroup

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  chan bool
}

func NewConsumer(cfg *config.KafkaConfig, handler ScoreHandler, logger *slog.Logger) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_0_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:  cfg,
		handler: handler,
		logger:  logger,
		group:   group,
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan bool),
	}, nil
}

// Start joins the consumer group and blocks until the first session is set up.
func (c *Consumer) Start() error {
	c.logger.Info("joining submissions consumer group",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(2)
	go c.consumeLoop()
	go c.logGroupErrors()

	select {
	case <-c.ready:
		c.logger.Info("submissions consumer ready")
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// consumeLoop rejoins the group after every rebalance until the consumer is stopped.
func (c *Consumer) consumeLoop() {
	defer c.wg.Done()
	for {
		h := &consumerGroupHandler{consumer: c, ready: c.ready}
		err := c.group.Consume(c.ctx, []string{c.config.Topic}, h)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) || c.ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Error("consume session ended", "error", err)
		}
		c.ready = make(chan bool)
	}
}

func (c *Consumer) logGroupErrors() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			c.logger.Error("consumer group error", "error", err)
		}
	}
}

// Stop leaves the group. Plays already buffered in a session are flushed first.
func (c *Consumer) Stop() error {
	c.logger.Info("leaving submissions consumer group")
	c.cancel()
	c.wg.Wait()
	return c.group.Close()
}

type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim buffers decodable plays and hands them to the ledger when the buffer is full,
// when the batch timeout fires, or when the claim ends. Undecodable messages are skipped.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	size, timeout := h.consumer.config.BatchSize, h.consumer.config.BatchTimeout
	pending := make([]domain.IdentifiedSubmission, 0, size)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	flush := func() {
		if len(pending) > 0 {
			h.submit(pending)
			pending = pending[:0]
		}
		timer.Reset(timeout)
	}

	for {
		select {
		case <-session.Context().Done():
			flush()
			return nil
		case <-timer.C:
			flush()
		case msg, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}
			session.MarkMessage(msg, "")

			play, err := DecodeSubmission(msg.Value)
			if err != nil {
				h.consumer.logger.Warn("skipping undecodable play",
					"error", err,
					"partition", msg.Partition,
					"offset", msg.Offset,
				)
				continue
			}
			if pending = append(pending, play); len(pending) >= size {
				flush()
			}
		}
	}
}

func (h *consumerGroupHandler) submit(plays []domain.IdentifiedSubmission) {
	ctx, cancel := context.WithTimeout(context.Background(), batchSubmitTimeout)
	defer cancel()

	accepted, err := h.consumer.handler.SubmitScoreBatch(ctx, plays)
	if err != nil {
		h.consumer.logger.Error("play batch failed", "error", err, "batch_size", len(plays))
		return
	}
	h.consumer.logger.Debug("play batch recorded", "batch_size", len(plays), "accepted", accepted)
}

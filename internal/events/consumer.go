package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
	"github.com/rabbitmq/amqp091-go"
)

// Drainer runs queue passes.
type Drainer interface {
	Drain(ctx context.Context, batchSize int) (*dispatch.DrainResult, error)
}

// Consumer drains the queue for every CampaignEnqueued event.
type Consumer struct {
	drainer   Drainer
	batchSize int
	log       *logger.Logger
}

// NewConsumer creates a consumer that drains with batchSize.
func NewConsumer(drainer Drainer, batchSize int) *Consumer {
	return &Consumer{drainer: drainer, batchSize: batchSize, log: logger.Named("events.Consumer")}
}

// Subscribe declares and binds the queue and starts delivery.
func Subscribe(ch *amqp091.Channel, queueName string) (<-chan amqp091.Delivery, error) {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKeyEnqueued, ExchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "dispatch-drainer", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

// Run handles deliveries until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp091.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				c.log.Warn("delivery channel closed")
				return
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks after a drain. Malformed events and failed drains are
// dropped without requeue; the background poller picks up the slack.
func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic while handling event", "panic", fmt.Sprint(r))
			_ = d.Nack(false, false)
		}
	}()

	var ev CampaignEnqueued
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		c.log.Warn("dropping malformed event", "error", err)
		_ = d.Nack(false, false)
		return
	}

	res, err := c.drainer.Drain(dispatch.WithTrigger(ctx, "amqp"), c.batchSize)
	if err != nil {
		c.log.Error("drain after event failed", "campaign_id", ev.CampaignID, "error", err)
		_ = d.Nack(false, false)
		return
	}
	c.log.Info("drained after event", "campaign_id", ev.CampaignID, "passes", res.Passes, "sent", res.Sent)
	if err := d.Ack(false); err != nil {
		c.log.Error("ack failed", "error", err)
	}
}

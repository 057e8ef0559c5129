package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/rabbitmq/amqp091-go"
)

// Channel is the publishing side of an AMQP channel.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher sends CampaignEnqueued events. It doubles as an approval
// listener.
type Publisher struct {
	ch  Channel
	log *logger.Logger
}

// NewPublisher wraps an open channel.
func NewPublisher(ch Channel) *Publisher {
	return &Publisher{ch: ch, log: logger.Named("events.Publisher")}
}

// Publish sends one event as persistent JSON.
func (p *Publisher) Publish(ctx context.Context, ev CampaignEnqueued) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.ch.PublishWithContext(ctx, ExchangeName, RoutingKeyEnqueued, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    ev.At,
		Body:         body,
	})
}

// CampaignEnqueued publishes the event and logs failures.
func (p *Publisher) CampaignEnqueued(ctx context.Context, c *domain.Campaign, items int) {
	ev := CampaignEnqueued{CampaignID: c.ID, ApplicantID: c.ApplicantID, Items: items, At: time.Now().UTC()}
	if err := p.Publish(ctx, ev); err != nil {
		p.log.Warn("publish campaign enqueued failed", "campaign_id", c.ID, "error", err)
	}
}

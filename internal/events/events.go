// Package events publishes queue wake-up events over RabbitMQ and drains
// the queue when they arrive. The events are hints: the background poller
// still drains the queue if the broker is down.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName       = "campaign-dispatch"
	RoutingKeyEnqueued = "campaign.enqueued"
	DefaultQueueName   = "dispatch.drain"
)

// CampaignEnqueued is published after an approved campaign's items are
// committed.
type CampaignEnqueued struct {
	CampaignID  uuid.UUID `json:"campaign_id"`
	ApplicantID uuid.UUID `json:"applicant_id"`
	Items       int       `json:"items"`
	At          time.Time `json:"at"`
}

// Dial opens a connection and a channel with the exchange declared.
func Dial(url string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return conn, ch, nil
}

package domain

import "time"

// TransportType identifies the outbound transport adapter.
type TransportType string

const (
	TransportSES  TransportType = "ses"
	TransportHTTP TransportType = "http"
)

// EmailMessage is the fully rendered message handed to a transport.
type EmailMessage struct {
	QueueItemID string `json:"queue_item_id"`
	CampaignID  string `json:"campaign_id"`
	To          string `json:"to"`
	FromName    string `json:"from_name"`
	FromEmail   string `json:"from_email"`
	Subject     string `json:"subject"`
	HTMLBody    string `json:"html_body"`
}

// SendResult is returned by a transport after an accepted send.
type SendResult struct {
	MessageID string        `json:"message_id"`
	Transport TransportType `json:"transport"`
	SentAt    time.Time     `json:"sent_at"`
}

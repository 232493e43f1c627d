package domain

import (
	"encoding/json"
	"time"
)

// Webhook records one processed webhook delivery, append-only
type Webhook struct {
	ID         string    `json:"id"`
	ShopDomain string    `json:"shop_domain"`
	Topic      string    `json:"topic"`
	WebhookID  string    `json:"webhook_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// WebhookEvent is an incoming, verified webhook delivery
type WebhookEvent struct {
	Topic     string
	Shop      string
	WebhookID string
	Payload   json.RawMessage
}

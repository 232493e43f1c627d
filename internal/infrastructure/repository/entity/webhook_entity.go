package entity

import (
	"time"

	"shopify-improvement-core/internal/domain"
)

// WebhookRecord is one processed webhook delivery
type WebhookRecord struct {
	ID         RecordID  `json:"id"`
	ShopDomain string    `json:"shop_domain"`
	Topic      string    `json:"topic"`
	WebhookID  string    `json:"webhook_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// WebhookKey identifies a webhook record by id
func WebhookKey(r *WebhookRecord) string { return string(r.ID) }

func (r *WebhookRecord) ToDomain() *domain.Webhook {
	return &domain.Webhook{
		ID:         string(r.ID),
		ShopDomain: r.ShopDomain,
		Topic:      r.Topic,
		WebhookID:  r.WebhookID,
		CreatedAt:  r.CreatedAt,
	}
}

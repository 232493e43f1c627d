package entity

import (
	"time"

	"shopify-improvement-core/internal/domain"
)

// APITokenRecord is the persisted form of an ApiToken; Token holds the encrypted blob
type APITokenRecord struct {
	ID        RecordID          `json:"id"`
	Service   string            `json:"service"`
	Token     string            `json:"token"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (r *APITokenRecord) GetCreatedAt() time.Time  { return r.CreatedAt }
func (r *APITokenRecord) SetCreatedAt(t time.Time) { r.CreatedAt = t }

// APITokenKey identifies a token record by service name
func APITokenKey(r *APITokenRecord) string { return r.Service }

func (r *APITokenRecord) ToDomain(token string) *domain.APIToken {
	metadata := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		metadata[k] = v
	}
	return &domain.APIToken{
		ID:        string(r.ID),
		Service:   r.Service,
		Token:     token,
		Metadata:  metadata,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

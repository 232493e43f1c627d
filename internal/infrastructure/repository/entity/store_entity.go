package entity

import (
	"time"

	"shopify-improvement-core/internal/domain"
)

// StoreRecord is the persisted form of a Store; AccessToken holds the encrypted blob
type StoreRecord struct {
	ID                    RecordID  `json:"id"`
	ShopDomain            string    `json:"shop_domain"`
	AccessToken           string    `json:"access_token"`
	Scope                 string    `json:"scope"`
	IsActive              bool      `json:"is_active"`
	APIKey                string    `json:"api_key,omitempty"`
	ImprovementAPIEnabled *bool     `json:"improvement_api_enabled,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (r *StoreRecord) GetCreatedAt() time.Time  { return r.CreatedAt }
func (r *StoreRecord) SetCreatedAt(t time.Time) { r.CreatedAt = t }

// StoreKey identifies a store record by shop domain
func StoreKey(r *StoreRecord) string { return r.ShopDomain }

// ToDomain converts the record with an already-decrypted token.
// Records written before the flag existed count as enabled.
func (r *StoreRecord) ToDomain(accessToken string) *domain.Store {
	enabled := true
	if r.ImprovementAPIEnabled != nil {
		enabled = *r.ImprovementAPIEnabled
	}
	return &domain.Store{
		ID:                    string(r.ID),
		ShopDomain:            r.ShopDomain,
		AccessToken:           accessToken,
		Scope:                 r.Scope,
		IsActive:              r.IsActive,
		APIKey:                r.APIKey,
		ImprovementAPIEnabled: enabled,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

// SetImprovementAPIEnabled stores an explicit flag value
func (r *StoreRecord) SetImprovementAPIEnabled(enabled bool) {
	r.ImprovementAPIEnabled = &enabled
}

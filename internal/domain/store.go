package domain

import "time"

// Store represents one merchant installation, keyed by its shop domain.
// AccessToken is plaintext here; repositories encrypt it before it reaches storage.
type Store struct {
	ID                    string    `json:"id"`
	ShopDomain            string    `json:"shop_domain"`
	AccessToken           string    `json:"-"`
	Scope                 string    `json:"scope"`
	IsActive              bool      `json:"is_active"`
	APIKey                string    `json:"api_key,omitempty"`
	ImprovementAPIEnabled bool      `json:"improvement_api_enabled"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

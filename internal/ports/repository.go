package ports

import (
	"context"

	"shopify-improvement-core/internal/domain"
)

// CredentialRepository defines persistence for stores and sessions.
// Store operations return errors; session operations report failure as false/nil
// and log the cause.
type CredentialRepository interface {
	// Store operations
	SaveStore(ctx context.Context, shopDomain, accessToken, scope string) (*domain.Store, error)
	GetStore(ctx context.Context, shopDomain string) (*domain.Store, error)
	DeleteStore(ctx context.Context, shopDomain string) error
	UpdateStoreSettings(ctx context.Context, shopDomain, apiKey string, improvementAPIEnabled bool) (*domain.Store, error)
	ListActiveStores(ctx context.Context) ([]*domain.Store, error)

	// Session operations
	StoreSession(ctx context.Context, session *domain.Session) bool
	LoadSession(ctx context.Context, id string) *domain.Session
	DeleteSession(ctx context.Context, id string) bool
	DeleteSessions(ctx context.Context, ids []string) bool
	FindSessionsByShop(ctx context.Context, shop string) []*domain.Session
}

// WorkflowRepository defines persistence for the improvement workflow
type WorkflowRepository interface {
	// Product operations
	SaveProduct(ctx context.Context, shopDomain string, snapshot domain.ProductSnapshot) (*domain.Product, error)
	GetProduct(ctx context.Context, key string) (*domain.Product, error)
	GetProductsByStatus(ctx context.Context, shopDomain string, status domain.ProductStatus) ([]*domain.Product, error)
	UpdateProductStatus(ctx context.Context, key string, status domain.ProductStatus) (*domain.Product, error)

	// Improvement operations
	SaveImprovement(ctx context.Context, productKey string, data domain.ImprovementData) (*domain.Improvement, error)
	GetImprovement(ctx context.Context, id string) (*domain.Improvement, error)
	GetImprovementsByStatus(ctx context.Context, status domain.ImprovementStatus) ([]*domain.Improvement, error)
	GetImprovementsForProduct(ctx context.Context, productKey string) ([]*domain.Improvement, error)
	UpdateImprovementStatus(ctx context.Context, id string, status domain.ImprovementStatus) (*domain.Improvement, error)
	// TransitionImprovementStatus moves id from `from` to `to` atomically.
	// It fails with ErrInvalidTransition when the current status differs from `from`.
	TransitionImprovementStatus(ctx context.Context, id string, from, to domain.ImprovementStatus) (*domain.Improvement, error)

	// ApiToken operations
	SaveAPIToken(ctx context.Context, service, token string, metadata map[string]string) (*domain.APIToken, error)
	GetAPIToken(ctx context.Context, service string) (*domain.APIToken, error)

	// Webhook operations
	SaveWebhook(ctx context.Context, shopDomain, topic, webhookID string) (*domain.Webhook, error)
	HasWebhook(ctx context.Context, shopDomain, topic, webhookID string) (bool, error)
}

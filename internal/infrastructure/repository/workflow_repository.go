package repository

import (
	"context"
	"fmt"
	"time"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/infrastructure/repository/entity"
	"shopify-improvement-core/internal/infrastructure/storage"
	"shopify-improvement-core/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WorkflowRepository stores products, improvements, service tokens and processed webhooks
type WorkflowRepository struct {
	products      *storage.Collection[entity.ProductRecord]
	improvements  *storage.Collection[entity.ImprovementRecord]
	apiTokens     *storage.Collection[entity.APITokenRecord]
	webhooks      *storage.Collection[entity.WebhookRecord]
	encryptionSvc ports.EncryptionService
	logger        zerolog.Logger
	now           func() time.Time
}

var _ ports.WorkflowRepository = (*WorkflowRepository)(nil)

// NewWorkflowRepository creates a new workflow repository on db
func NewWorkflowRepository(db *storage.DB, encryptionSvc ports.EncryptionService, logger zerolog.Logger) *WorkflowRepository {
	return &WorkflowRepository{
		products:      storage.NewCollection[entity.ProductRecord](db, storage.CollectionProducts, entity.ProductKey),
		improvements:  storage.NewCollection[entity.ImprovementRecord](db, storage.CollectionImprovements, entity.ImprovementKey),
		apiTokens:     storage.NewCollection[entity.APITokenRecord](db, storage.CollectionAPITokens, entity.APITokenKey),
		webhooks:      storage.NewCollection[entity.WebhookRecord](db, storage.CollectionWebhooks, entity.WebhookKey),
		encryptionSvc: encryptionSvc,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SaveProduct upserts the snapshot under "<shopDomain>_<productId>" and resets it to pending_improvement
func (r *WorkflowRepository) SaveProduct(ctx context.Context, shopDomain string, snapshot domain.ProductSnapshot) (*domain.Product, error) {
	if shopDomain == "" || snapshot.ProductID == 0 {
		return nil, fmt.Errorf("%w: shop domain and product id are required", domain.ErrInvalidInput)
	}

	saved, err := r.products.Upsert(ctx, entity.ProductRecordFromSnapshot(shopDomain, snapshot, r.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to save product: %w", err)
	}
	return saved.ToDomain(), nil
}

// GetProduct returns the product with key, or nil
func (r *WorkflowRepository) GetProduct(ctx context.Context, key string) (*domain.Product, error) {
	record, err := r.products.Find(ctx, func(p *entity.ProductRecord) bool { return p.ID == key })
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return record.ToDomain(), nil
}

// GetProductsByStatus returns the shop's products in status
func (r *WorkflowRepository) GetProductsByStatus(ctx context.Context, shopDomain string, status domain.ProductStatus) ([]*domain.Product, error) {
	records, err := r.products.Filter(ctx, func(p *entity.ProductRecord) bool {
		return p.ShopDomain == shopDomain && p.Status == string(status)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]*domain.Product, 0, len(records))
	for i := range records {
		products = append(products, records[i].ToDomain())
	}
	return products, nil
}

// UpdateProductStatus sets the status of key. Returns nil when the product does not exist.
func (r *WorkflowRepository) UpdateProductStatus(ctx context.Context, key string, status domain.ProductStatus) (*domain.Product, error) {
	now := r.now()
	record, err := r.products.Update(ctx,
		func(p *entity.ProductRecord) bool { return p.ID == key },
		func(p *entity.ProductRecord) error {
			p.Status = string(status)
			p.UpdatedAt = now
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to update product status: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return record.ToDomain(), nil
}

// SaveImprovement records a pending_approval improvement for an existing product
func (r *WorkflowRepository) SaveImprovement(ctx context.Context, productKey string, data domain.ImprovementData) (*domain.Improvement, error) {
	product, err := r.GetProduct(ctx, productKey)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, productKey)
	}

	record := entity.NewImprovementRecord(uuid.New().String(), productKey, data, r.now())
	if err := r.improvements.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save improvement: %w", err)
	}
	return record.ToDomain(), nil
}

// GetImprovement returns the improvement with id, or nil
func (r *WorkflowRepository) GetImprovement(ctx context.Context, id string) (*domain.Improvement, error) {
	record, err := r.improvements.Find(ctx, func(i *entity.ImprovementRecord) bool { return string(i.ID) == id })
	if err != nil {
		return nil, fmt.Errorf("failed to get improvement: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return record.ToDomain(), nil
}

// GetImprovementsByStatus returns every improvement in status
func (r *WorkflowRepository) GetImprovementsByStatus(ctx context.Context, status domain.ImprovementStatus) ([]*domain.Improvement, error) {
	return r.filterImprovements(ctx, func(i *entity.ImprovementRecord) bool { return i.Status == string(status) })
}

// GetImprovementsForProduct returns every improvement proposed for productKey
func (r *WorkflowRepository) GetImprovementsForProduct(ctx context.Context, productKey string) ([]*domain.Improvement, error) {
	return r.filterImprovements(ctx, func(i *entity.ImprovementRecord) bool { return i.ProductID == productKey })
}

func (r *WorkflowRepository) filterImprovements(ctx context.Context, predicate func(*entity.ImprovementRecord) bool) ([]*domain.Improvement, error) {
	records, err := r.improvements.Filter(ctx, predicate)
	if err != nil {
		return nil, fmt.Errorf("failed to list improvements: %w", err)
	}
	improvements := make([]*domain.Improvement, 0, len(records))
	for i := range records {
		improvements = append(improvements, records[i].ToDomain())
	}
	return improvements, nil
}

// UpdateImprovementStatus sets the status of id and stamps the decision time.
// Returns nil when the improvement does not exist.
func (r *WorkflowRepository) UpdateImprovementStatus(ctx context.Context, id string, status domain.ImprovementStatus) (*domain.Improvement, error) {
	now := r.now()
	record, err := r.improvements.Update(ctx,
		func(i *entity.ImprovementRecord) bool { return string(i.ID) == id },
		func(i *entity.ImprovementRecord) error {
			i.ApplyStatus(status, now)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to update improvement status: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return record.ToDomain(), nil
}

// TransitionImprovementStatus moves id from `from` to `to` under the collection lock
func (r *WorkflowRepository) TransitionImprovementStatus(ctx context.Context, id string, from, to domain.ImprovementStatus) (*domain.Improvement, error) {
	now := r.now()
	record, err := r.improvements.Update(ctx,
		func(i *entity.ImprovementRecord) bool { return string(i.ID) == id },
		func(i *entity.ImprovementRecord) error {
			if i.Status != string(from) {
				return fmt.Errorf("%w: improvement %s is %s", domain.ErrInvalidTransition, id, i.Status)
			}
			i.ApplyStatus(to, now)
			return nil
		})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return record.ToDomain(), nil
}

// SaveAPIToken encrypts token and upserts it by service; metadata is replaced wholesale
func (r *WorkflowRepository) SaveAPIToken(ctx context.Context, service, token string, metadata map[string]string) (*domain.APIToken, error) {
	if service == "" {
		return nil, fmt.Errorf("%w: service is required", domain.ErrInvalidInput)
	}
	encrypted, err := r.encryptionSvc.Encrypt(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt api token: %w", err)
	}

	copied := make(map[string]string, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}

	now := r.now()
	var saved entity.APITokenRecord
	err = r.apiTokens.Mutate(ctx, func(records []entity.APITokenRecord) ([]entity.APITokenRecord, error) {
		for i := range records {
			if records[i].Service != service {
				continue
			}
			records[i].Token = encrypted
			records[i].Metadata = copied
			records[i].UpdatedAt = now
			saved = records[i]
			return records, nil
		}
		saved = entity.APITokenRecord{
			ID:        entity.RecordID(uuid.New().String()),
			Service:   service,
			Token:     encrypted,
			Metadata:  copied,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return append(records, saved), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save api token: %w", err)
	}

	r.logger.Info().Str("service", service).Msg("API token saved")
	return saved.ToDomain(token), nil
}

// GetAPIToken returns the token for service with its secret decrypted, or nil
func (r *WorkflowRepository) GetAPIToken(ctx context.Context, service string) (*domain.APIToken, error) {
	record, err := r.apiTokens.Find(ctx, func(t *entity.APITokenRecord) bool { return t.Service == service })
	if err != nil {
		return nil, fmt.Errorf("failed to get api token: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	token, err := r.encryptionSvc.Decrypt(record.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt api token for %s: %w", service, err)
	}
	return record.ToDomain(token), nil
}

// SaveWebhook appends a processed delivery
func (r *WorkflowRepository) SaveWebhook(ctx context.Context, shopDomain, topic, webhookID string) (*domain.Webhook, error) {
	record := entity.WebhookRecord{
		ID:         entity.RecordID(uuid.New().String()),
		ShopDomain: shopDomain,
		Topic:      topic,
		WebhookID:  webhookID,
		CreatedAt:  r.now(),
	}
	if err := r.webhooks.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save webhook: %w", err)
	}
	return record.ToDomain(), nil
}

// HasWebhook reports whether the delivery was already processed
func (r *WorkflowRepository) HasWebhook(ctx context.Context, shopDomain, topic, webhookID string) (bool, error) {
	record, err := r.webhooks.Find(ctx, func(w *entity.WebhookRecord) bool {
		return w.ShopDomain == shopDomain && w.Topic == topic && w.WebhookID == webhookID
	})
	if err != nil {
		return false, fmt.Errorf("failed to check webhook: %w", err)
	}
	return record != nil, nil
}

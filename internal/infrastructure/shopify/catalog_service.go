package shopify

import (
	"context"
	"errors"
	"fmt"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// CatalogService reads and updates a merchant's catalog with the store's own access token
type CatalogService struct {
	credentials ports.CredentialRepository
	client      ports.ShopifyClient
	logger      zerolog.Logger
}

var (
	_ ports.CatalogReader  = (*CatalogService)(nil)
	_ ports.CatalogUpdater = (*CatalogService)(nil)
)

// NewCatalogService creates a catalog service
func NewCatalogService(credentials ports.CredentialRepository, client ports.ShopifyClient, logger zerolog.Logger) *CatalogService {
	return &CatalogService{
		credentials: credentials,
		client:      client,
		logger:      logger,
	}
}

// getAccessToken returns the decrypted token of an active store
func (s *CatalogService) getAccessToken(ctx context.Context, shopDomain string) (string, error) {
	store, err := s.credentials.GetStore(ctx, shopDomain)
	if err != nil {
		return "", fmt.Errorf("failed to get store: %w", err)
	}
	if store == nil || store.AccessToken == "" {
		return "", fmt.Errorf("%w: no active installation for %s", domain.ErrNotFound, shopDomain)
	}
	return store.AccessToken, nil
}

// classify maps a catalog client error onto the domain taxonomy
func (s *CatalogService) classify(shopDomain string, err error, fallback error) error {
	switch {
	case IsNotFound(err):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case IsTokenRejected(err):
		s.logger.Warn().Err(err).Str("shop", shopDomain).Msg("Access token rejected by Shopify, store needs reinstall")
		return fmt.Errorf("%w: access token rejected: %v", fallback, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: catalog call timed out: %v", fallback, err)
	default:
		return fmt.Errorf("%w: %v", fallback, err)
	}
}

// FetchSnapshot loads one product from the catalog
func (s *CatalogService) FetchSnapshot(ctx context.Context, shopDomain string, productID int64) (*domain.ProductSnapshot, error) {
	token, err := s.getAccessToken(ctx, shopDomain)
	if err != nil {
		return nil, err
	}

	product, err := s.client.GetProduct(ctx, shopDomain, token, productID)
	if err != nil {
		return nil, s.classify(shopDomain, err, domain.ErrExternalServiceUnavailable)
	}

	snapshot := ToSnapshot(product)
	return &snapshot, nil
}

// ListSnapshots loads up to limit products from the catalog
func (s *CatalogService) ListSnapshots(ctx context.Context, shopDomain string, limit int) ([]domain.ProductSnapshot, error) {
	token, err := s.getAccessToken(ctx, shopDomain)
	if err != nil {
		return nil, err
	}

	products, err := s.client.GetProducts(ctx, shopDomain, token, &goshopify.ListOptions{Limit: limit})
	if err != nil {
		return nil, s.classify(shopDomain, err, domain.ErrExternalServiceUnavailable)
	}

	snapshots := make([]domain.ProductSnapshot, 0, len(products))
	for i := range products {
		snapshots = append(snapshots, ToSnapshot(&products[i]))
	}
	return snapshots, nil
}

// ApplyApprovedImprovement pushes title, body and SEO fields to the catalog product
func (s *CatalogService) ApplyApprovedImprovement(ctx context.Context, shopDomain string, productID int64, update domain.CatalogUpdate) error {
	token, err := s.getAccessToken(ctx, shopDomain)
	if err != nil {
		return err
	}

	product := ToProductUpdate(productID, update)
	if _, err := s.client.UpdateProduct(ctx, shopDomain, token, &product); err != nil {
		return s.classify(shopDomain, err, domain.ErrExternalUpdateFailed)
	}

	s.logger.Info().
		Str("shop", shopDomain).
		Int64("productId", productID).
		Msg("Approved improvement applied to catalog")
	return nil
}

package ports

import (
	"context"

	"shopify-improvement-core/internal/domain"

	shopify "github.com/bold-commerce/go-shopify/v4"
)

// ShopifyClient defines the catalog operations used by the improvement workflow
type ShopifyClient interface {
	GetProducts(ctx context.Context, shop string, accessToken string, options interface{}) ([]shopify.Product, error)
	GetProduct(ctx context.Context, shop string, accessToken string, productID int64) (*shopify.Product, error)
	UpdateProduct(ctx context.Context, shop string, accessToken string, product *shopify.Product) (*shopify.Product, error)
}

// CatalogUpdater pushes approved improvements to the merchant's catalog
type CatalogUpdater interface {
	ApplyApprovedImprovement(ctx context.Context, shopDomain string, productID int64, update domain.CatalogUpdate) error
}

// CatalogReader fetches product snapshots from the merchant's catalog
type CatalogReader interface {
	FetchSnapshot(ctx context.Context, shopDomain string, productID int64) (*domain.ProductSnapshot, error)
}

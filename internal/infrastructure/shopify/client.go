package shopify

import (
	"context"
	"fmt"

	"shopify-improvement-core/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

type client struct {
	app         goshopify.App
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// NewClient creates a new Shopify client adapter
func NewClient(apiKey, apiSecret string, logger zerolog.Logger) ports.ShopifyClient {
	return &client{
		app: goshopify.App{
			ApiKey:    apiKey,
			ApiSecret: apiSecret,
		},
		rateLimiter: NewRateLimiter(defaultRate, defaultBurst),
		logger:      logger,
	}
}

// createClient is a helper to create a goshopify client once the shop's bucket allows a call
func (c *client) createClient(ctx context.Context, shopDomain string, accessToken string) (*goshopify.Client, error) {
	if err := c.rateLimiter.Wait(ctx, shopDomain); err != nil {
		return nil, err
	}
	client, err := goshopify.NewClient(c.app, shopDomain, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func (c *client) GetProducts(ctx context.Context, shopDomain string, accessToken string, options interface{}) ([]goshopify.Product, error) {
	client, err := c.createClient(ctx, shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	products, err := client.Product.List(ctx, options)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (c *client) GetProduct(ctx context.Context, shopDomain string, accessToken string, productID int64) (*goshopify.Product, error) {
	client, err := c.createClient(ctx, shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	product, err := client.Product.Get(ctx, uint64(productID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (c *client) UpdateProduct(ctx context.Context, shopDomain string, accessToken string, product *goshopify.Product) (*goshopify.Product, error) {
	client, err := c.createClient(ctx, shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	updated, err := client.Product.Update(ctx, *product)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	c.logger.Debug().Str("shop", shopDomain).Uint64("productId", product.Id).Msg("Product updated")
	return updated, nil
}

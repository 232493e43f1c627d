package ports

import (
	"context"

	"shopify-improvement-core/internal/domain"
)

// Enhancer produces an improved version of a product's content
type Enhancer interface {
	Enhance(ctx context.Context, data domain.ImprovementData) (*domain.ImprovementData, error)
}

// EnhancerFactory builds an Enhancer for the configured improvement integration
type EnhancerFactory interface {
	NewEnhancer(endpoint, token string) (Enhancer, error)
}

package enhancement

import (
	"context"
	"fmt"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"
)

// Simulator produces deterministic improvements without calling out. Images are kept as-is.
type Simulator struct{}

var _ ports.Enhancer = Simulator{}

func (Simulator) Enhance(ctx context.Context, data domain.ImprovementData) (*domain.ImprovementData, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalServiceUnavailable, err)
	}
	return &domain.ImprovementData{
		Title:       fmt.Sprintf("Improved: %s", data.Title),
		Description: fmt.Sprintf("Enhanced description for %s. This product features premium quality and exceptional value.", data.Title),
		Images:      data.Images,
	}, nil
}

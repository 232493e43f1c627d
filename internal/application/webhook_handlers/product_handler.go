package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	"github.com/rs/zerolog"
)

// ProductHandler notes catalog changes to products tracked by the improvement workflow
type ProductHandler struct {
	logger   zerolog.Logger
	workflow ports.WorkflowRepository
}

// NewProductHandler creates a new product webhook handler
func NewProductHandler(logger zerolog.Logger, workflow ports.WorkflowRepository) *ProductHandler {
	return &ProductHandler{
		logger:   logger,
		workflow: workflow,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ProductHandler) CanHandle(topic string) bool {
	return topic == "products/update" || topic == "products/delete"
}

// Handle logs updates to tracked products. Tracked snapshots are not refreshed;
// re-selecting the product does that.
func (h *ProductHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var productData struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(event.Payload, &productData); err != nil {
		return fmt.Errorf("failed to parse product webhook payload: %w", err)
	}

	key := domain.ProductKey(event.Shop, productData.ID)
	product, err := h.workflow.GetProduct(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get tracked product: %w", err)
	}
	if product == nil {
		h.logger.Debug().Str("topic", event.Topic).Str("shop", event.Shop).Int64("productId", productData.ID).Msg("Webhook for untracked product")
		return nil
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Int64("productId", productData.ID).
		Str("status", string(product.Status)).
		Msg("Tracked product changed in catalog")
	return nil
}

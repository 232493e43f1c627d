package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"shopify-improvement-core/internal/domain"

	"github.com/rs/zerolog"
)

// Uninstaller deactivates a store and its sessions
type Uninstaller interface {
	Uninstall(ctx context.Context, shopDomain string) error
}

// AppUninstalledHandler handles app uninstalled webhook events
type AppUninstalledHandler struct {
	logger      zerolog.Logger
	uninstaller Uninstaller
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(logger zerolog.Logger, uninstaller Uninstaller) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		logger:      logger,
		uninstaller: uninstaller,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Handle deactivates the store named by the delivery header or, failing that, the shop payload
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain := event.Shop
	if shopDomain == "" {
		var shopData struct {
			Domain          string `json:"domain"`
			MyshopifyDomain string `json:"myshopify_domain"`
		}
		if err := json.Unmarshal(event.Payload, &shopData); err != nil {
			return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
		}
		shopDomain = shopData.MyshopifyDomain
		if shopDomain == "" {
			shopDomain = shopData.Domain
		}
	}
	if shopDomain == "" {
		return fmt.Errorf("%w: app uninstalled webhook without shop", domain.ErrInvalidInput)
	}

	h.logger.Info().Str("topic", event.Topic).Str("shop", shopDomain).Msg("Processing app uninstalled webhook event")
	return h.uninstaller.Uninstall(ctx, shopDomain)
}

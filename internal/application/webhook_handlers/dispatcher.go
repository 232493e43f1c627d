package webhook_handlers

import (
	"context"
	"fmt"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	"github.com/rs/zerolog"
)

// Handler processes webhook events for the topics it accepts
type Handler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// Dispatcher routes verified deliveries to handlers and records them for idempotency
type Dispatcher struct {
	handlers []Handler
	workflow ports.WorkflowRepository
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher over handlers
func NewDispatcher(workflow ports.WorkflowRepository, logger zerolog.Logger, handlers ...Handler) *Dispatcher {
	return &Dispatcher{
		handlers: handlers,
		workflow: workflow,
		logger:   logger,
	}
}

// Dispatch runs every handler accepting the event's topic. It returns false without
// running anything when the delivery was already processed or no handler accepts it.
func (d *Dispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	if event.WebhookID != "" {
		seen, err := d.workflow.HasWebhook(ctx, event.Shop, event.Topic, event.WebhookID)
		if err != nil {
			return false, fmt.Errorf("failed to check webhook: %w", err)
		}
		if seen {
			d.logger.Info().
				Str("topic", event.Topic).
				Str("shop", event.Shop).
				Str("webhookId", event.WebhookID).
				Msg("Duplicate webhook delivery skipped")
			return false, nil
		}
	}

	handled := false
	for _, h := range d.handlers {
		if !h.CanHandle(event.Topic) {
			continue
		}
		handled = true
		if err := h.Handle(ctx, event); err != nil {
			d.logger.Error().Err(err).Str("topic", event.Topic).Str("shop", event.Shop).Msg("Webhook handler failed")
			return false, fmt.Errorf("failed to handle %s webhook: %w", event.Topic, err)
		}
	}
	if !handled {
		d.logger.Debug().Str("topic", event.Topic).Str("shop", event.Shop).Msg("No handler for webhook topic")
		return false, nil
	}

	if _, err := d.workflow.SaveWebhook(ctx, event.Shop, event.Topic, event.WebhookID); err != nil {
		return true, fmt.Errorf("failed to record webhook: %w", err)
	}

	d.logger.Info().Str("topic", event.Topic).Str("shop", event.Shop).Msg("Webhook processed")
	return true, nil
}

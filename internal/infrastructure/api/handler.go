package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"shopify-improvement-core/internal/application"
	"shopify-improvement-core/internal/application/webhook_handlers"
	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/infrastructure/pubsub"
	"shopify-improvement-core/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

const (
	defaultProductLimit = 50
	maxProductLimit     = 250
	sseKeepAlive        = 25 * time.Second
)

// ProductLister lists catalog products of a shop
type ProductLister interface {
	ListSnapshots(ctx context.Context, shopDomain string, limit int) ([]domain.ProductSnapshot, error)
}

// WebhookVerifier authenticates webhook deliveries
type WebhookVerifier interface {
	Verify(r *http.Request) bool
}

// HandlerConfig holds the collaborators of the HTTP adapter.
// Products, Events and Metrics may be nil; DevMode enables POST /dev/install.
type HandlerConfig struct {
	Improvements *application.ImprovementService
	Settings     *application.SettingsService
	Installer    *application.InstallationService
	Dispatcher   *webhook_handlers.Dispatcher
	Credentials  ports.CredentialRepository
	Products     ProductLister
	Verifier     WebhookVerifier
	Events       *pubsub.ImprovementPubSub
	Metrics      http.Handler
	DevMode      bool
	Logger       zerolog.Logger
}

// Handler is the HTTP adapter over the application services
type Handler struct {
	cfg    HandlerConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewHandler creates the HTTP adapter
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg, logger: cfg.Logger, now: time.Now}
}

// Router builds the chi router with all routes and middleware
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", SessionHeader},
	}))

	r.Get("/health", h.health)
	if h.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.cfg.Metrics)
	}
	r.Post("/webhooks/shopify", h.webhook)
	if h.cfg.DevMode {
		r.Post("/dev/install", h.devInstall)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(sessionMiddleware(h.cfg.Credentials, h.logger, h.now))

		r.Get("/products", h.listProducts)
		r.Post("/products/improve", h.improveProducts)
		r.Post("/products/select", h.selectProducts)

		r.Get("/improvements/pending", h.pendingImprovements)
		r.Get("/improvements/events", h.improvementEvents)
		r.Post("/improvements/{id}/approve", h.approveImprovement)
		r.Post("/improvements/{id}/reject", h.rejectImprovement)

		r.Get("/settings", h.getSettings)
		r.Post("/settings", h.saveSettings)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Products == nil {
		writeError(w, h.logger, fmt.Errorf("%w: catalog access is not configured", domain.ErrMisconfigured))
		return
	}

	limit := defaultProductLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxProductLimit {
			writeError(w, h.logger, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidInput, maxProductLimit))
			return
		}
		limit = n
	}

	products, err := h.cfg.Products.ListSnapshots(r.Context(), domain.GetShopDomainFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

type improveRequest struct {
	Products []domain.ProductSnapshot `json:"products" validate:"required,min=1,max=250"`
}

type submitResponse struct {
	Success  bool   `json:"success"`
	Accepted int    `json:"accepted"`
	Message  string `json:"message"`
}

func (h *Handler) improveProducts(w http.ResponseWriter, r *http.Request) {
	var req improveRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	accepted, err := h.cfg.Improvements.Submit(r.Context(), domain.GetShopDomainFromContext(r.Context()), req.Products)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Success:  true,
		Accepted: accepted,
		Message:  fmt.Sprintf("%d products sent for improvement", accepted),
	})
}

type selectRequest struct {
	ProductIDs []int64 `json:"product_ids" validate:"required,min=1,max=250,dive,gt=0"`
}

func (h *Handler) selectProducts(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	accepted, err := h.cfg.Improvements.SubmitByID(r.Context(), domain.GetShopDomainFromContext(r.Context()), req.ProductIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Success:  true,
		Accepted: accepted,
		Message:  fmt.Sprintf("%d products sent for improvement", accepted),
	})
}

func (h *Handler) pendingImprovements(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.cfg.Improvements.PendingReviews(r.Context(), domain.GetShopDomainFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

// authorizeImprovement hides improvements of other shops behind a 404
func (h *Handler) authorizeImprovement(r *http.Request, id string) error {
	owner, err := h.cfg.Improvements.ShopOf(r.Context(), id)
	if err != nil {
		return err
	}
	if owner != domain.GetShopDomainFromContext(r.Context()) {
		return fmt.Errorf("%w: improvement %s", domain.ErrNotFound, id)
	}
	return nil
}

type decisionResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Improvement *domain.Improvement `json:"improvement,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func (h *Handler) approveImprovement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.authorizeImprovement(r, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	improvement, err := h.cfg.Improvements.Approve(r.Context(), id)
	if err != nil {
		if improvement != nil {
			// approved but not applied to the catalog
			writeJSON(w, statusFor(err), decisionResponse{
				Message:     "Improvement approved but catalog update failed",
				Improvement: improvement,
				Error:       err.Error(),
			})
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{Success: true, Message: "Improvement approved", Improvement: improvement})
}

func (h *Handler) rejectImprovement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.authorizeImprovement(r, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	improvement, err := h.cfg.Improvements.Reject(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{Success: true, Message: "Improvement rejected", Improvement: improvement})
}

// improvementEvents streams the shop's improvement events as server-sent events
func (h *Handler) improvementEvents(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Events == nil {
		writeError(w, h.logger, fmt.Errorf("%w: event stream is not enabled", domain.ErrMisconfigured))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, errors.New("streaming unsupported"))
		return
	}

	sub := h.cfg.Events.Subscribe(r.Context(), &pubsub.EventFilter{Shop: domain.GetShopDomainFromContext(r.Context())})
	defer h.cfg.Events.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error().Err(err).Msg("Failed to encode improvement event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type settingsResponse struct {
	*application.ImprovementSettings
	Store *domain.Store `json:"store,omitempty"`
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.cfg.Settings.ImprovementSettings(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := settingsResponse{ImprovementSettings: settings}
	store, err := h.cfg.Settings.StoreSettings(r.Context(), domain.GetShopDomainFromContext(r.Context()))
	switch {
	case err == nil:
		resp.Store = store
	case !errors.Is(err, domain.ErrNotFound):
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type settingsRequest struct {
	Endpoint              string  `json:"endpoint" validate:"omitempty,url"`
	Token                 string  `json:"token"`
	APIKey                *string `json:"api_key"`
	ImprovementAPIEnabled *bool   `json:"improvement_api_enabled"`
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := settingsResponse{}
	if req.Endpoint != "" || req.Token != "" {
		settings, err := h.cfg.Settings.ConfigureImprovementAPI(r.Context(), req.Endpoint, req.Token)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		resp.ImprovementSettings = settings
	}

	if req.APIKey != nil || req.ImprovementAPIEnabled != nil {
		shop := domain.GetShopDomainFromContext(r.Context())
		current, err := h.cfg.Settings.StoreSettings(r.Context(), shop)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		apiKey, enabled := current.APIKey, current.ImprovementAPIEnabled
		if req.APIKey != nil {
			apiKey = *req.APIKey
		}
		if req.ImprovementAPIEnabled != nil {
			enabled = *req.ImprovementAPIEnabled
		}
		store, err := h.cfg.Settings.UpdateStoreSettings(r.Context(), shop, apiKey, enabled)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		resp.Store = store
	}

	if resp.ImprovementSettings == nil {
		settings, err := h.cfg.Settings.ImprovementSettings(r.Context())
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		resp.ImprovementSettings = settings
	}
	writeJSON(w, http.StatusOK, resp)
}

// webhook verifies and dispatches a Shopify webhook delivery
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Verifier == nil || !h.cfg.Verifier.Verify(r) {
		h.logger.Warn().Str("topic", r.Header.Get("X-Shopify-Topic")).Msg("Webhook signature verification failed")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid signature"})
		return
	}

	topic := r.Header.Get("X-Shopify-Topic")
	if topic == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-Shopify-Topic header"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}

	event := &domain.WebhookEvent{
		Topic:     topic,
		Shop:      r.Header.Get("X-Shopify-Shop-Domain"),
		WebhookID: r.Header.Get("X-Shopify-Webhook-Id"),
		Payload:   payload,
	}

	processed, err := h.cfg.Dispatcher.Dispatch(r.Context(), event)
	if err != nil {
		// a 5xx makes Shopify retry the delivery
		h.logger.Error().Err(err).Str("topic", topic).Str("shop", event.Shop).Msg("Failed to dispatch webhook event")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to process webhook event"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true, "processed": processed})
}

type devInstallRequest struct {
	Shop        string `json:"shop" validate:"required"`
	AccessToken string `json:"access_token" validate:"required"`
	Scope       string `json:"scope"`
}

// devInstall simulates a completed installation in development mode
func (h *Handler) devInstall(w http.ResponseWriter, r *http.Request) {
	var req devInstallRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	store, session, err := h.cfg.Installer.CompleteInstall(r.Context(), req.Shop, req.AccessToken, req.Scope)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Development mode - simulating authenticated session",
		"session_id": session.ID,
		"store":      store,
	})
}

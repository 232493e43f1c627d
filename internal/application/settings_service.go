package application

import (
	"context"
	"fmt"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	"github.com/rs/zerolog"
)

// MaskedToken is echoed back by settings forms in place of the stored token.
// Submitting it keeps the current token.
const MaskedToken = "********"

// ImprovementSettings is the public view of the enhancement integration
type ImprovementSettings struct {
	Endpoint        string `json:"endpoint"`
	HasToken        bool   `json:"token"`
	DefaultEndpoint string `json:"default_endpoint,omitempty"`
}

// SettingsService manages the enhancement integration and per-store settings
type SettingsService struct {
	workflow        ports.WorkflowRepository
	credentials     ports.CredentialRepository
	defaultEndpoint string
	logger          zerolog.Logger
}

// NewSettingsService creates a settings service; defaultEndpoint is used when none is submitted
func NewSettingsService(
	workflow ports.WorkflowRepository,
	credentials ports.CredentialRepository,
	defaultEndpoint string,
	logger zerolog.Logger,
) *SettingsService {
	return &SettingsService{
		workflow:        workflow,
		credentials:     credentials,
		defaultEndpoint: defaultEndpoint,
		logger:          logger,
	}
}

// ImprovementSettings returns the configured endpoint and whether a token is stored
func (s *SettingsService) ImprovementSettings(ctx context.Context) (*ImprovementSettings, error) {
	token, err := s.workflow.GetAPIToken(ctx, domain.ImprovementAPIService)
	if err != nil {
		return nil, fmt.Errorf("failed to get improvement settings: %w", err)
	}

	settings := &ImprovementSettings{DefaultEndpoint: s.defaultEndpoint}
	if token != nil {
		settings.Endpoint = token.Endpoint()
		settings.HasToken = token.Token != ""
	}
	return settings, nil
}

// ConfigureImprovementAPI stores the endpoint and token of the enhancement integration.
// An empty or masked token keeps the current one; an empty endpoint falls back to the default.
func (s *SettingsService) ConfigureImprovementAPI(ctx context.Context, endpoint, token string) (*ImprovementSettings, error) {
	if endpoint == "" {
		endpoint = s.defaultEndpoint
	}

	if token == "" || token == MaskedToken {
		existing, err := s.workflow.GetAPIToken(ctx, domain.ImprovementAPIService)
		if err != nil {
			return nil, fmt.Errorf("failed to get improvement settings: %w", err)
		}
		token = ""
		if existing != nil {
			token = existing.Token
		}
	}

	if endpoint == "" && token == "" {
		return nil, fmt.Errorf("%w: endpoint or token is required", domain.ErrInvalidInput)
	}

	saved, err := s.workflow.SaveAPIToken(ctx, domain.ImprovementAPIService, token, map[string]string{
		domain.MetadataEndpoint: endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save improvement settings: %w", err)
	}

	s.logger.Info().Str("endpoint", endpoint).Bool("hasToken", token != "").Msg("Improvement API settings saved")
	return &ImprovementSettings{
		Endpoint:        saved.Endpoint(),
		HasToken:        saved.Token != "",
		DefaultEndpoint: s.defaultEndpoint,
	}, nil
}

// StoreSettings returns the settings of an installed store
func (s *SettingsService) StoreSettings(ctx context.Context, shopDomain string) (*domain.Store, error) {
	store, err := s.credentials.GetStore(ctx, shopDomain)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store %s", domain.ErrNotFound, shopDomain)
	}
	return store, nil
}

// UpdateStoreSettings changes the store's tenant API key and improvement flag
func (s *SettingsService) UpdateStoreSettings(ctx context.Context, shopDomain, apiKey string, improvementAPIEnabled bool) (*domain.Store, error) {
	store, err := s.credentials.UpdateStoreSettings(ctx, shopDomain, apiKey, improvementAPIEnabled)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store %s", domain.ErrNotFound, shopDomain)
	}

	s.logger.Info().Str("shop", shopDomain).Bool("improvementApiEnabled", improvementAPIEnabled).Msg("Store settings updated")
	return store, nil
}

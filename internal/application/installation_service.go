package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	"github.com/rs/zerolog"
)

// OfflineSessionID returns the id of a store's offline session
func OfflineSessionID(shopDomain string) string {
	return "offline_" + shopDomain
}

// InstallationService records app installs and uninstalls for a store
type InstallationService struct {
	credentials ports.CredentialRepository
	logger      zerolog.Logger
}

// NewInstallationService creates a new installation service
func NewInstallationService(credentials ports.CredentialRepository, logger zerolog.Logger) *InstallationService {
	return &InstallationService{
		credentials: credentials,
		logger:      logger,
	}
}

// CompleteInstall persists the store once authentication succeeded, enables the
// improvement API, issues a tenant API key if it has none, and stores the offline session.
func (s *InstallationService) CompleteInstall(ctx context.Context, shopDomain, accessToken, scope string) (*domain.Store, *domain.Session, error) {
	store, err := s.credentials.SaveStore(ctx, shopDomain, accessToken, scope)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to save store: %w", err)
	}

	apiKey := store.APIKey
	if apiKey == "" {
		// 32 bytes = 64 hex characters
		keyBytes := make([]byte, 32)
		if _, err := rand.Read(keyBytes); err != nil {
			return nil, nil, fmt.Errorf("failed to generate store API key: %w", err)
		}
		apiKey = hex.EncodeToString(keyBytes)
	}

	store, err = s.credentials.UpdateStoreSettings(ctx, shopDomain, apiKey, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update store settings: %w", err)
	}
	if store == nil {
		return nil, nil, fmt.Errorf("%w: store %s vanished during install", domain.ErrNotFound, shopDomain)
	}

	session := &domain.Session{
		ID:          OfflineSessionID(shopDomain),
		Shop:        shopDomain,
		State:       "installed",
		IsOnline:    false,
		Scope:       scope,
		AccessToken: accessToken,
	}
	if !s.credentials.StoreSession(ctx, session) {
		return store, nil, fmt.Errorf("%w: failed to store offline session", domain.ErrStorageUnavailable)
	}

	s.logger.Info().Str("shop", shopDomain).Str("scope", scope).Msg("App installed")
	return store, session, nil
}

// Uninstall deactivates the store and removes all of its sessions
func (s *InstallationService) Uninstall(ctx context.Context, shopDomain string) error {
	if err := s.credentials.DeleteStore(ctx, shopDomain); err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to deactivate store")
		return fmt.Errorf("failed to deactivate store: %w", err)
	}

	sessions := s.credentials.FindSessionsByShop(ctx, shopDomain)
	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}
	if len(ids) > 0 && !s.credentials.DeleteSessions(ctx, ids) {
		return fmt.Errorf("%w: failed to delete sessions for %s", domain.ErrStorageUnavailable, shopDomain)
	}

	s.logger.Info().Str("shop", shopDomain).Int("sessions", len(ids)).Msg("App uninstalled")
	return nil
}

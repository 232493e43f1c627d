package repository

import (
	"context"
	"fmt"
	"time"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/infrastructure/repository/entity"
	"shopify-improvement-core/internal/infrastructure/storage"
	"shopify-improvement-core/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CredentialRepository stores merchant installations and authentication sessions.
// Access tokens are encrypted before they reach the collection store.
type CredentialRepository struct {
	stores        *storage.Collection[entity.StoreRecord]
	sessions      *storage.Collection[entity.SessionRecord]
	encryptionSvc ports.EncryptionService
	logger        zerolog.Logger
	now           func() time.Time
}

var _ ports.CredentialRepository = (*CredentialRepository)(nil)

// NewCredentialRepository creates a new credential repository on db
func NewCredentialRepository(db *storage.DB, encryptionSvc ports.EncryptionService, logger zerolog.Logger) *CredentialRepository {
	return &CredentialRepository{
		stores:        storage.NewCollection[entity.StoreRecord](db, storage.CollectionStores, entity.StoreKey),
		sessions:      storage.NewCollection[entity.SessionRecord](db, storage.CollectionSessions, entity.SessionKey),
		encryptionSvc: encryptionSvc,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SaveStore upserts the store for shopDomain and reactivates it.
// The returned Store carries the plaintext token.
func (r *CredentialRepository) SaveStore(ctx context.Context, shopDomain, accessToken, scope string) (*domain.Store, error) {
	if shopDomain == "" {
		return nil, fmt.Errorf("%w: shop domain is required", domain.ErrInvalidInput)
	}

	encrypted, err := r.encryptionSvc.Encrypt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	now := r.now()
	var saved entity.StoreRecord
	err = r.stores.Mutate(ctx, func(records []entity.StoreRecord) ([]entity.StoreRecord, error) {
		for i := range records {
			if records[i].ShopDomain != shopDomain {
				continue
			}
			records[i].AccessToken = encrypted
			records[i].Scope = scope
			records[i].IsActive = true
			records[i].UpdatedAt = now
			saved = records[i]
			return records, nil
		}
		saved = entity.StoreRecord{
			ID:          entity.RecordID(uuid.New().String()),
			ShopDomain:  shopDomain,
			AccessToken: encrypted,
			Scope:       scope,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return append(records, saved), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save store: %w", err)
	}

	r.logger.Info().Str("shop", shopDomain).Msg("Store saved")
	return saved.ToDomain(accessToken), nil
}

// GetStore returns the active store for shopDomain with its token decrypted, or nil
func (r *CredentialRepository) GetStore(ctx context.Context, shopDomain string) (*domain.Store, error) {
	record, err := r.stores.Find(ctx, func(s *entity.StoreRecord) bool {
		return s.ShopDomain == shopDomain && s.IsActive
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return r.decryptStore(record)
}

// DeleteStore marks the store inactive. Missing or inactive stores are a no-op.
func (r *CredentialRepository) DeleteStore(ctx context.Context, shopDomain string) error {
	now := r.now()
	_, err := r.stores.Update(ctx,
		func(s *entity.StoreRecord) bool { return s.ShopDomain == shopDomain && s.IsActive },
		func(s *entity.StoreRecord) error {
			s.IsActive = false
			s.UpdatedAt = now
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	return nil
}

// UpdateStoreSettings changes the tenant API key and improvement flag of an active store.
// Returns nil when no active store exists.
func (r *CredentialRepository) UpdateStoreSettings(ctx context.Context, shopDomain, apiKey string, improvementAPIEnabled bool) (*domain.Store, error) {
	now := r.now()
	record, err := r.stores.Update(ctx,
		func(s *entity.StoreRecord) bool { return s.ShopDomain == shopDomain && s.IsActive },
		func(s *entity.StoreRecord) error {
			s.APIKey = apiKey
			s.SetImprovementAPIEnabled(improvementAPIEnabled)
			s.UpdatedAt = now
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to update store settings: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return r.decryptStore(record)
}

// ListActiveStores returns every active store with decrypted tokens
func (r *CredentialRepository) ListActiveStores(ctx context.Context) ([]*domain.Store, error) {
	records, err := r.stores.Filter(ctx, func(s *entity.StoreRecord) bool { return s.IsActive })
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	stores := make([]*domain.Store, 0, len(records))
	for i := range records {
		store, err := r.decryptStore(&records[i])
		if err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}
	return stores, nil
}

func (r *CredentialRepository) decryptStore(record *entity.StoreRecord) (*domain.Store, error) {
	token, err := r.encryptionSvc.Decrypt(record.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for %s: %w", record.ShopDomain, err)
	}
	return record.ToDomain(token), nil
}

// StoreSession upserts session by id. Failures are logged and reported as false.
func (r *CredentialRepository) StoreSession(ctx context.Context, session *domain.Session) bool {
	if session == nil || session.ID == "" {
		r.logger.Error().Msg("Refusing to store session without id")
		return false
	}

	encrypted := ""
	if session.AccessToken != "" {
		var err error
		encrypted, err = r.encryptionSvc.Encrypt(session.AccessToken)
		if err != nil {
			r.logger.Error().Err(err).Str("session_id", session.ID).Str("shop", session.Shop).Msg("Failed to encrypt session token")
			return false
		}
	}

	if _, err := r.sessions.Upsert(ctx, entity.SessionRecordFromDomain(session, encrypted)); err != nil {
		r.logger.Error().Err(err).Str("session_id", session.ID).Str("shop", session.Shop).Msg("Failed to store session")
		return false
	}
	return true
}

// LoadSession returns the session with id, or nil when absent or unreadable
func (r *CredentialRepository) LoadSession(ctx context.Context, id string) *domain.Session {
	record, err := r.sessions.Find(ctx, func(s *entity.SessionRecord) bool { return s.ID == id })
	if err != nil {
		r.logger.Error().Err(err).Str("session_id", id).Msg("Failed to load session")
		return nil
	}
	if record == nil {
		return nil
	}
	session, err := r.sessionToDomain(record)
	if err != nil {
		r.logger.Error().Err(err).Str("session_id", id).Msg("Failed to decrypt session token")
		return nil
	}
	return session
}

// DeleteSession removes the session with id. A missing id still reports success.
func (r *CredentialRepository) DeleteSession(ctx context.Context, id string) bool {
	if _, err := r.sessions.Remove(ctx, func(s *entity.SessionRecord) bool { return s.ID == id }); err != nil {
		r.logger.Error().Err(err).Str("session_id", id).Msg("Failed to delete session")
		return false
	}
	return true
}

// DeleteSessions removes every session in ids
func (r *CredentialRepository) DeleteSessions(ctx context.Context, ids []string) bool {
	if len(ids) == 0 {
		return true
	}
	targets := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		targets[id] = struct{}{}
	}

	if _, err := r.sessions.Remove(ctx, func(s *entity.SessionRecord) bool {
		_, ok := targets[s.ID]
		return ok
	}); err != nil {
		r.logger.Error().Err(err).Strs("session_ids", ids).Msg("Failed to delete sessions")
		return false
	}
	return true
}

// FindSessionsByShop returns all readable sessions of shop
func (r *CredentialRepository) FindSessionsByShop(ctx context.Context, shop string) []*domain.Session {
	records, err := r.sessions.Filter(ctx, func(s *entity.SessionRecord) bool { return s.Shop == shop })
	if err != nil {
		r.logger.Error().Err(err).Str("shop", shop).Msg("Failed to find sessions")
		return []*domain.Session{}
	}

	sessions := make([]*domain.Session, 0, len(records))
	for i := range records {
		session, err := r.sessionToDomain(&records[i])
		if err != nil {
			r.logger.Error().Err(err).Str("session_id", records[i].ID).Str("shop", shop).Msg("Skipping session with unreadable token")
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions
}

func (r *CredentialRepository) sessionToDomain(record *entity.SessionRecord) (*domain.Session, error) {
	token := ""
	if record.AccessToken != "" {
		var err error
		token, err = r.encryptionSvc.Decrypt(record.AccessToken)
		if err != nil {
			return nil, err
		}
	}
	return record.ToDomain(token, r.now()), nil
}

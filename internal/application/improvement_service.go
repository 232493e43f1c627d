package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	"github.com/rs/zerolog"
)

// ImprovementServiceConfig holds the collaborators of an ImprovementService.
// Catalog, Events and Observer may be nil.
type ImprovementServiceConfig struct {
	Workflow           ports.WorkflowRepository
	Credentials        ports.CredentialRepository
	Enhancers          ports.EnhancerFactory
	CatalogReader      ports.CatalogReader
	CatalogUpdater     ports.CatalogUpdater
	Events             ports.EventPublisher
	Observer           ports.WorkflowObserver
	EnhancementTimeout time.Duration
	CatalogTimeout     time.Duration
	Logger             zerolog.Logger
}

// ImprovementService drives products through enhancement and review
type ImprovementService struct {
	workflow           ports.WorkflowRepository
	credentials        ports.CredentialRepository
	enhancers          ports.EnhancerFactory
	catalogReader      ports.CatalogReader
	catalogUpdater     ports.CatalogUpdater
	events             ports.EventPublisher
	observer           ports.WorkflowObserver
	enhancementTimeout time.Duration
	catalogTimeout     time.Duration
	logger             zerolog.Logger
	now                func() time.Time
}

// NewImprovementService creates the improvement orchestrator
func NewImprovementService(cfg ImprovementServiceConfig) *ImprovementService {
	return &ImprovementService{
		workflow:           cfg.Workflow,
		credentials:        cfg.Credentials,
		enhancers:          cfg.Enhancers,
		catalogReader:      cfg.CatalogReader,
		catalogUpdater:     cfg.CatalogUpdater,
		events:             cfg.Events,
		observer:           cfg.Observer,
		enhancementTimeout: cfg.EnhancementTimeout,
		catalogTimeout:     cfg.CatalogTimeout,
		logger:             cfg.Logger,
		now:                time.Now,
	}
}

// Submit records the snapshots as pending and, when an enhancement integration is
// configured, requests an improvement for each of them. It returns the number of
// products accepted. A product repeated in the batch is taken once, with its last
// snapshot. Individual failures are logged and skipped.
func (s *ImprovementService) Submit(ctx context.Context, shopDomain string, snapshots []domain.ProductSnapshot) (int, error) {
	if shopDomain == "" {
		return 0, fmt.Errorf("%w: shop domain is required", domain.ErrInvalidInput)
	}
	snapshots = dedupeSnapshots(snapshots)

	saved := make([]*domain.Product, 0, len(snapshots))
	var firstErr error
	for _, snapshot := range snapshots {
		product, err := s.workflow.SaveProduct(ctx, shopDomain, snapshot)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("shop", shopDomain).
				Int64("productId", snapshot.ProductID).
				Msg("Failed to save product, skipping")
			s.observe(func(o ports.WorkflowObserver) { o.IncSubmitted(ports.OutcomeFailed) })
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		saved = append(saved, product)
	}
	if len(saved) == 0 && firstErr != nil {
		return 0, fmt.Errorf("failed to save products: %w", firstErr)
	}

	enhancer, err := s.resolveEnhancer(ctx, shopDomain)
	if err != nil {
		if errors.Is(err, domain.ErrMisconfigured) {
			s.logger.Info().
				Str("shop", shopDomain).
				Int("products", len(saved)).
				Str("reason", err.Error()).
				Msg("Enhancement not configured, products left pending")
			for range saved {
				s.observe(func(o ports.WorkflowObserver) { o.IncSubmitted(ports.OutcomeDegraded) })
			}
			return len(saved), nil
		}
		return len(saved), err
	}

	for _, product := range saved {
		if err := s.improveProduct(ctx, enhancer, product); err != nil {
			s.logger.Warn().Err(err).
				Str("shop", shopDomain).
				Int64("productId", product.ProductID).
				Msg("Failed to improve product, left pending")
			s.observe(func(o ports.WorkflowObserver) { o.IncSubmitted(ports.OutcomeFailed) })
			continue
		}
		s.observe(func(o ports.WorkflowObserver) { o.IncSubmitted(ports.OutcomeEnhanced) })
	}

	s.logger.Info().Str("shop", shopDomain).Int("products", len(saved)).Msg("Products submitted for improvement")
	return len(saved), nil
}

// dedupeSnapshots keeps the first position and the last snapshot of every product id
func dedupeSnapshots(snapshots []domain.ProductSnapshot) []domain.ProductSnapshot {
	out := make([]domain.ProductSnapshot, 0, len(snapshots))
	index := make(map[int64]int, len(snapshots))
	for _, snapshot := range snapshots {
		if i, ok := index[snapshot.ProductID]; ok && snapshot.ProductID != 0 {
			out[i] = snapshot
			continue
		}
		index[snapshot.ProductID] = len(out)
		out = append(out, snapshot)
	}
	return out
}

// SubmitByID fetches the products from the catalog and submits them.
// Products that cannot be fetched are skipped.
func (s *ImprovementService) SubmitByID(ctx context.Context, shopDomain string, productIDs []int64) (int, error) {
	if s.catalogReader == nil {
		return 0, fmt.Errorf("%w: catalog access is not configured", domain.ErrMisconfigured)
	}

	snapshots := make([]domain.ProductSnapshot, 0, len(productIDs))
	for _, id := range productIDs {
		callCtx, cancel := s.withTimeout(ctx, s.catalogTimeout)
		snapshot, err := s.catalogReader.FetchSnapshot(callCtx, shopDomain, id)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("shop", shopDomain).Int64("productId", id).Msg("Failed to fetch product, skipping")
			s.observe(func(o ports.WorkflowObserver) { o.IncSubmitted(ports.OutcomeFailed) })
			continue
		}
		snapshots = append(snapshots, *snapshot)
	}
	if len(snapshots) == 0 {
		return 0, nil
	}
	return s.Submit(ctx, shopDomain, snapshots)
}

// resolveEnhancer returns ErrMisconfigured when the batch must run in degraded mode
func (s *ImprovementService) resolveEnhancer(ctx context.Context, shopDomain string) (ports.Enhancer, error) {
	store, err := s.credentials.GetStore(ctx, shopDomain)
	if err != nil {
		s.logger.Warn().Err(err).Str("shop", shopDomain).Msg("Failed to read store settings, assuming improvement API enabled")
	} else if store != nil && !store.ImprovementAPIEnabled {
		return nil, fmt.Errorf("%w: improvement API disabled for %s", domain.ErrMisconfigured, shopDomain)
	}

	token, err := s.workflow.GetAPIToken(ctx, domain.ImprovementAPIService)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptSecret) {
			s.logger.Error().Err(err).Msg("Improvement API token cannot be decrypted")
			return nil, fmt.Errorf("%w: improvement API token unreadable", domain.ErrMisconfigured)
		}
		return nil, fmt.Errorf("failed to get improvement API token: %w", err)
	}
	if token.Endpoint() == "" {
		return nil, fmt.Errorf("%w: no improvement API endpoint", domain.ErrMisconfigured)
	}

	return s.enhancers.NewEnhancer(token.Endpoint(), token.Token)
}

// improveProduct writes the improvement and moves the product to improvement_pending.
// When the status change fails the new improvement is withdrawn. Older pending
// improvements of the product are superseded by the new one.
func (s *ImprovementService) improveProduct(ctx context.Context, enhancer ports.Enhancer, product *domain.Product) error {
	callCtx, cancel := s.withTimeout(ctx, s.enhancementTimeout)
	start := s.now()
	improved, err := enhancer.Enhance(callCtx, domain.ImprovementData{
		Title:       product.Title,
		Description: product.Description,
		Images:      product.Images,
	})
	cancel()
	s.observe(func(o ports.WorkflowObserver) { o.ObserveEnhancement(s.now().Sub(start)) })
	if err != nil {
		if !errors.Is(err, domain.ErrExternalServiceUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrExternalServiceUnavailable, err)
		}
		return err
	}

	improvement, err := s.workflow.SaveImprovement(ctx, product.ID, *improved)
	if err != nil {
		return fmt.Errorf("failed to save improvement: %w", err)
	}
	updated, err := s.workflow.UpdateProductStatus(ctx, product.ID, domain.ProductImprovementPending)
	if err == nil && updated == nil {
		err = fmt.Errorf("%w: product %s", domain.ErrNotFound, product.ID)
	}
	if err != nil {
		s.withdraw(ctx, improvement)
		return fmt.Errorf("failed to update product status: %w", err)
	}
	s.supersedePending(ctx, product.ShopDomain, product.ID, improvement.ID, improvement.CreatedAt)

	s.observe(func(o ports.WorkflowObserver) { o.IncImprovementCreated() })
	s.publish(domain.EventImprovementCreated, product.ShopDomain, improvement)
	return nil
}

// withdraw rejects an improvement whose product could not be moved along with it
func (s *ImprovementService) withdraw(ctx context.Context, improvement *domain.Improvement) {
	_, err := s.workflow.TransitionImprovementStatus(ctx, improvement.ID, domain.ImprovementPendingApproval, domain.ImprovementRejected)
	if err != nil {
		s.logger.Error().Err(err).
			Str("improvementId", improvement.ID).
			Str("productKey", improvement.ProductID).
			Msg("Failed to withdraw improvement")
		return
	}
	s.logger.Warn().Str("improvementId", improvement.ID).Str("productKey", improvement.ProductID).Msg("Improvement withdrawn")
}

// supersedePending rejects the product's other pending improvements.
// A non-zero before limits it to improvements created earlier than that instant.
func (s *ImprovementService) supersedePending(ctx context.Context, shop, productKey, keepID string, before time.Time) {
	improvements, err := s.workflow.GetImprovementsForProduct(ctx, productKey)
	if err != nil {
		s.logger.Error().Err(err).Str("productKey", productKey).Msg("Failed to list improvements to supersede")
		return
	}
	for _, other := range improvements {
		if other.ID == keepID || other.Status != domain.ImprovementPendingApproval {
			continue
		}
		if !before.IsZero() && !other.CreatedAt.Before(before) {
			continue
		}
		rejected, err := s.workflow.TransitionImprovementStatus(ctx, other.ID, domain.ImprovementPendingApproval, domain.ImprovementRejected)
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidTransition) {
				s.logger.Error().Err(err).Str("improvementId", other.ID).Msg("Failed to supersede improvement")
			}
			continue
		}
		if rejected == nil {
			continue
		}
		s.logger.Info().
			Str("improvementId", other.ID).
			Str("supersededBy", keepID).
			Str("productKey", productKey).
			Msg("Pending improvement superseded")
		s.publish(domain.EventImprovementRejected, shop, rejected)
	}
}

// Approve accepts an improvement, marks its product improved and pushes it to the catalog.
// Approving an approved improvement returns it unchanged. A catalog failure is returned
// together with the approved improvement; the approval is kept.
func (s *ImprovementService) Approve(ctx context.Context, id string) (*domain.Improvement, error) {
	current, err := s.getImprovement(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case domain.ImprovementApproved:
		return current, nil
	case domain.ImprovementRejected:
		return nil, fmt.Errorf("%w: improvement %s was rejected", domain.ErrInvalidTransition, id)
	}

	owner, err := s.workflow.GetProduct(ctx, current.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, current.ProductID)
	}

	approved, err := s.workflow.TransitionImprovementStatus(ctx, id, domain.ImprovementPendingApproval, domain.ImprovementApproved)
	if err != nil {
		return s.resolveRace(ctx, id, domain.ImprovementApproved, err)
	}
	s.observe(func(o ports.WorkflowObserver) { o.IncDecision(string(domain.ImprovementApproved)) })

	product, err := s.workflow.UpdateProductStatus(ctx, approved.ProductID, domain.ProductImproved)
	if err != nil {
		return approved, fmt.Errorf("failed to update product status: %w", err)
	}
	if product == nil {
		s.logger.Error().Str("improvementId", id).Str("productKey", approved.ProductID).Msg("Approved improvement references a missing product")
		return approved, fmt.Errorf("%w: product %s", domain.ErrNotFound, approved.ProductID)
	}
	s.publish(domain.EventImprovementApproved, product.ShopDomain, approved)
	s.supersedePending(ctx, product.ShopDomain, product.ID, approved.ID, time.Time{})

	if err := s.applyToCatalog(ctx, product, approved); err != nil {
		return approved, err
	}

	s.logger.Info().Str("improvementId", id).Str("shop", product.ShopDomain).Msg("Improvement approved")
	return approved, nil
}

func (s *ImprovementService) applyToCatalog(ctx context.Context, product *domain.Product, improvement *domain.Improvement) error {
	if s.catalogUpdater == nil {
		s.logger.Warn().Str("improvementId", improvement.ID).Msg("No catalog updater configured, approval not pushed")
		return nil
	}

	update := domain.CatalogUpdate{
		Title: improvement.ImprovedTitle,
		Body:  improvement.ImprovedDescription,
	}
	if update.Title == "" {
		update.Title = product.Title
	}
	if improvement.ImprovedSEO != nil {
		update.SEOTitle = improvement.ImprovedSEO.Title
		update.SEODescription = improvement.ImprovedSEO.Description
	}

	callCtx, cancel := s.withTimeout(ctx, s.catalogTimeout)
	defer cancel()
	err := s.catalogUpdater.ApplyApprovedImprovement(callCtx, product.ShopDomain, product.ProductID, update)
	if err == nil {
		return nil
	}

	s.observe(func(o ports.WorkflowObserver) { o.IncCatalogFailure() })
	s.logger.Error().Err(err).
		Str("improvementId", improvement.ID).
		Str("shop", product.ShopDomain).
		Int64("productId", product.ProductID).
		Msg("Failed to apply approved improvement to catalog")
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrExternalUpdateFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrExternalUpdateFailed, err)
}

// Reject declines an improvement; the product status is left as it is.
// Rejecting a rejected improvement returns it unchanged.
func (s *ImprovementService) Reject(ctx context.Context, id string) (*domain.Improvement, error) {
	current, err := s.getImprovement(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case domain.ImprovementRejected:
		return current, nil
	case domain.ImprovementApproved:
		return nil, fmt.Errorf("%w: improvement %s was approved", domain.ErrInvalidTransition, id)
	}

	rejected, err := s.workflow.TransitionImprovementStatus(ctx, id, domain.ImprovementPendingApproval, domain.ImprovementRejected)
	if err != nil {
		return s.resolveRace(ctx, id, domain.ImprovementRejected, err)
	}
	s.observe(func(o ports.WorkflowObserver) { o.IncDecision(string(domain.ImprovementRejected)) })

	shop := ""
	if product, err := s.workflow.GetProduct(ctx, rejected.ProductID); err == nil && product != nil {
		shop = product.ShopDomain
	}
	s.publish(domain.EventImprovementRejected, shop, rejected)

	s.logger.Info().Str("improvementId", id).Str("shop", shop).Msg("Improvement rejected")
	return rejected, nil
}

// resolveRace handles a transition lost to a concurrent decision
func (s *ImprovementService) resolveRace(ctx context.Context, id string, want domain.ImprovementStatus, err error) (*domain.Improvement, error) {
	if !errors.Is(err, domain.ErrInvalidTransition) {
		return nil, fmt.Errorf("failed to update improvement status: %w", err)
	}
	current, getErr := s.getImprovement(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status == want {
		return current, nil
	}
	return nil, err
}

func (s *ImprovementService) getImprovement(ctx context.Context, id string) (*domain.Improvement, error) {
	improvement, err := s.workflow.GetImprovement(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get improvement: %w", err)
	}
	if improvement == nil {
		return nil, fmt.Errorf("%w: improvement %s", domain.ErrNotFound, id)
	}
	return improvement, nil
}

// PendingReviews lists improvements awaiting approval side by side with their
// original product, newest first and one per product. An empty shopDomain lists
// all tenants.
func (s *ImprovementService) PendingReviews(ctx context.Context, shopDomain string) ([]domain.ImprovementReview, error) {
	improvements, err := s.workflow.GetImprovementsByStatus(ctx, domain.ImprovementPendingApproval)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending improvements: %w", err)
	}
	slices.SortStableFunc(improvements, func(a, b *domain.Improvement) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	products := make(map[string]*domain.Product)
	listed := make(map[string]bool)
	reviews := make([]domain.ImprovementReview, 0, len(improvements))
	for _, improvement := range improvements {
		if listed[improvement.ProductID] {
			continue
		}
		product, ok := products[improvement.ProductID]
		if !ok {
			product, err = s.workflow.GetProduct(ctx, improvement.ProductID)
			if err != nil {
				return nil, fmt.Errorf("failed to get product: %w", err)
			}
			products[improvement.ProductID] = product
		}
		if product == nil || (shopDomain != "" && product.ShopDomain != shopDomain) {
			continue
		}
		listed[improvement.ProductID] = true

		reviews = append(reviews, domain.ImprovementReview{
			ID: improvement.ID,
			Original: domain.ReviewFields{
				Title:       product.Title,
				Description: product.Description,
				Image:       domain.FirstImageSrc(product.Images),
			},
			Improved: domain.ReviewFields{
				Title:       improvement.ImprovedTitle,
				Description: improvement.ImprovedDescription,
				Image:       domain.FirstImageSrc(improvement.ImprovedImages),
			},
			SEO: improvement.ImprovedSEO,
		})
	}
	return reviews, nil
}

func (s *ImprovementService) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (s *ImprovementService) observe(fn func(ports.WorkflowObserver)) {
	if s.observer != nil {
		fn(s.observer)
	}
}

func (s *ImprovementService) publish(kind domain.ImprovementEventKind, shop string, improvement *domain.Improvement) {
	if s.events == nil {
		return
	}
	s.events.Publish(&domain.ImprovementEvent{
		Kind:          kind,
		Shop:          shop,
		ImprovementID: improvement.ID,
		ProductKey:    improvement.ProductID,
		Status:        improvement.Status,
		OccurredAt:    s.now(),
	})
}

// ShopOf returns the shop owning the improvement's product
func (s *ImprovementService) ShopOf(ctx context.Context, id string) (string, error) {
	improvement, err := s.getImprovement(ctx, id)
	if err != nil {
		return "", err
	}
	product, err := s.workflow.GetProduct(ctx, improvement.ProductID)
	if err != nil {
		return "", fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return "", fmt.Errorf("%w: product %s", domain.ErrNotFound, improvement.ProductID)
	}
	return product.ShopDomain, nil
}

package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/infrastructure/encryption"
	"shopify-improvement-core/internal/infrastructure/repository"
	"shopify-improvement-core/internal/infrastructure/storage"
	"shopify-improvement-core/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeEnhancer struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (f *fakeEnhancer) Enhance(ctx context.Context, data domain.ImprovementData) (*domain.ImprovementData, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ImprovementData{
		Title:       "Improved: " + data.Title,
		Description: "Enhanced " + data.Title,
		Images:      data.Images,
		SEO:         &domain.SEO{Title: data.Title + " | Shop", Description: "Buy " + data.Title},
	}, nil
}

type fakeEnhancerFactory struct {
	enhancer    *fakeEnhancer
	gotEndpoint string
	gotToken    string
}

func (f *fakeEnhancerFactory) NewEnhancer(endpoint, token string) (ports.Enhancer, error) {
	f.gotEndpoint = endpoint
	f.gotToken = token
	return f.enhancer, nil
}

type catalogCall struct {
	shop      string
	productID int64
	update    domain.CatalogUpdate
}

type fakeCatalog struct {
	mu        sync.Mutex
	snapshots map[int64]domain.ProductSnapshot
	updates   []catalogCall
	updateErr error
}

func (f *fakeCatalog) FetchSnapshot(ctx context.Context, shopDomain string, productID int64) (*domain.ProductSnapshot, error) {
	s, ok := f.snapshots[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (f *fakeCatalog) ApplyApprovedImprovement(ctx context.Context, shopDomain string, productID int64, update domain.CatalogUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, catalogCall{shop: shopDomain, productID: productID, update: update})
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.ImprovementEvent
}

func (p *recordingPublisher) Publish(event *domain.ImprovementEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) kinds() []domain.ImprovementEventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ImprovementEventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

type countingObserver struct {
	mu        sync.Mutex
	submitted map[string]int
	created   int
	decisions map[string]int
	failures  int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{submitted: map[string]int{}, decisions: map[string]int{}}
}

func (o *countingObserver) IncSubmitted(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitted[outcome]++
}

func (o *countingObserver) IncImprovementCreated() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created++
}

func (o *countingObserver) IncDecision(status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions[status]++
}

func (o *countingObserver) IncCatalogFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func (o *countingObserver) ObserveEnhancement(time.Duration) {}

type testEnv struct {
	workflow    *repository.WorkflowRepository
	credentials *repository.CredentialRepository
	enhancer    *fakeEnhancer
	factory     *fakeEnhancerFactory
	catalog     *fakeCatalog
	events      *recordingPublisher
	observer    *countingObserver
	service     *ImprovementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	medium, err := storage.NewFileMedium(t.TempDir())
	require.NoError(t, err)
	db := storage.NewDB(medium, zerolog.Nop())
	codec, err := encryption.NewService("application-test-secret")
	require.NoError(t, err)

	env := &testEnv{
		workflow:    repository.NewWorkflowRepository(db, codec, zerolog.Nop()),
		credentials: repository.NewCredentialRepository(db, codec, zerolog.Nop()),
		enhancer:    &fakeEnhancer{},
		catalog:     &fakeCatalog{snapshots: map[int64]domain.ProductSnapshot{}},
		events:      &recordingPublisher{},
		observer:    newCountingObserver(),
	}
	env.factory = &fakeEnhancerFactory{enhancer: env.enhancer}
	env.service = NewImprovementService(ImprovementServiceConfig{
		Workflow:           env.workflow,
		Credentials:        env.credentials,
		Enhancers:          env.factory,
		CatalogReader:      env.catalog,
		CatalogUpdater:     env.catalog,
		Events:             env.events,
		Observer:           env.observer,
		EnhancementTimeout: time.Second,
		CatalogTimeout:     time.Second,
		Logger:             zerolog.Nop(),
	})
	return env
}

// serviceOver builds an orchestrator sharing the env's collaborators but reading
// and writing the workflow through repo
func (e *testEnv) serviceOver(repo ports.WorkflowRepository) *ImprovementService {
	return NewImprovementService(ImprovementServiceConfig{
		Workflow:           repo,
		Credentials:        e.credentials,
		Enhancers:          e.factory,
		CatalogReader:      e.catalog,
		CatalogUpdater:     e.catalog,
		Events:             e.events,
		Observer:           e.observer,
		EnhancementTimeout: time.Second,
		CatalogTimeout:     time.Second,
		Logger:             zerolog.Nop(),
	})
}

// failingStatusRepo fails every move of a product to improvement_pending
type failingStatusRepo struct {
	ports.WorkflowRepository
}

func (r failingStatusRepo) UpdateProductStatus(ctx context.Context, key string, status domain.ProductStatus) (*domain.Product, error) {
	if status == domain.ProductImprovementPending {
		return nil, domain.ErrStorageUnavailable
	}
	return r.WorkflowRepository.UpdateProductStatus(ctx, key, status)
}

// missingProductRepo reports every product as absent
type missingProductRepo struct {
	ports.WorkflowRepository
}

func (missingProductRepo) GetProduct(ctx context.Context, key string) (*domain.Product, error) {
	return nil, nil
}

func (e *testEnv) configureEndpoint(t *testing.T) {
	t.Helper()
	_, err := e.workflow.SaveAPIToken(context.Background(), domain.ImprovementAPIService, "svc-token",
		map[string]string{domain.MetadataEndpoint: "https://improve.example.com"})
	require.NoError(t, err)
}

var errBoom = errors.New("boom")

const testShop = "a.myshopify.com"

func widget() domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ProductID:   123,
		Title:       "Widget",
		Description: "A widget",
		Images:      []domain.Image{{Src: "https://cdn.example.com/w.png"}},
	}
}

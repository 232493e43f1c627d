package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_DegradedModeWithoutIntegration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	accepted, err := env.service.Submit(ctx, testShop, []domain.ProductSnapshot{widget()})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)

	pending, err := env.workflow.GetProductsByStatus(ctx, testShop, domain.ProductPendingImprovement)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(123), pending[0].ProductID)

	improvements, err := env.workflow.GetImprovementsByStatus(ctx, domain.ImprovementPendingApproval)
	require.NoError(t, err)
	assert.Empty(t, improvements)
	assert.Zero(t, env.enhancer.calls)
	assert.Equal(t, 1, env.observer.submitted[ports.OutcomeDegraded])
}

func TestSubmit_EndpointMissingFromMetadataIsDegraded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.workflow.SaveAPIToken(ctx, domain.ImprovementAPIService, "tok", map[string]string{})
	require.NoError(t, err)

	accepted, err := env.service.Submit(ctx, testShop, []domain.ProductSnapshot{widget()})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Zero(t, env.enhancer.calls)
}

func TestSubmit_StoreWithImprovementDisabledIsDegraded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.configureEndpoint(t)
	_, err := env.credentials.SaveStore(ctx, testShop, "shpat", "read_products")
	require.NoError(t, err)
	_, err = env.credentials.UpdateStoreSettings(ctx, testShop, "key", false)
	require.NoError(t, err)

	_, err = env.service.Submit(ctx, testShop, []domain.ProductSnapshot{widget()})
	require.NoError(t, err)
	assert.Zero(t, env.enhancer.calls)
}

func TestSubmit_WithIntegrationCreatesImprovement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.configureEndpoint(t)

	accepted, err := env.service.Submit(ctx, testShop, []domain.ProductSnapshot{widget()})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, "https://improve.example.com", env.factory.gotEndpoint)
	assert.Equal(t, "svc-token", env.factory.gotToken)

	product, err := env.workflow.GetProduct(ctx, domain.ProductKey(testShop, 123))
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, domain.ProductImprovementPending, product.Status)

	improvements, err := env.workflow.GetImprovementsByStatus(ctx, domain.ImprovementPendingApproval)
	require.NoError(t, err)
	require.Len(t, improvements, 1)
	assert.Equal(t, product.ID, improvements[0].ProductID)
	assert.Equal(t, "Improved: Widget", improvements[0].ImprovedTitle)

	assert.Equal(t, []domain.ImprovementEventKind{domain.EventImprovementCreated}, env.events.kinds())
	assert.Equal(t, 1, env.observer.created)
	assert.Equal(t, 1, env.observer.submitted[ports.OutcomeEnhanced])
}

func TestSubmit_EnhancementFailureLeavesProductPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.configureEndpoint(t)
	env.enhancer.err = fmt.Errorf("%w: 503", domain.ErrExternalServiceUnavailable)

	second := widget()
	second.ProductID = 456
	accepted, err := env.service.Submit(ctx, testShop, []domain.ProductSnapshot{widget(), second})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)

	pending, err := env.workflow.GetProductsByStatus(ctx, testShop, domain.ProductPendingImprovement)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	improvements, err := env.workflow.GetImprovementsByStatus(ctx, domain.ImprovementPendingApproval)
	require.NoError(t, err)
	assert.Empty(t, improvements)
	assert.Equal(t, 2, env.observer.submitted[ports.OutcomeFailed])
}

func TestSubmit_EnhancementTimeoutLeavesProductPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.configureEndpoint(t)
	env.enhancer.delay = time.Second
	env.service.enhancementTimeout = 20 * time.Millisecond

	accepted, err := env.service.Submit(ctx, testShop, []domain.ProductSnapshot{widget()})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)

	product, err := env.workflow.GetProduct(ctx, domain.ProductKey(testShop, 123))
	require.NoError(t, err)
	assert.Equal(t, domain.ProductPendingImprovement, product.Status)

	improvements, err := env.workflow.GetImprovementsForProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, improvements)
}

func TestSubmit_RequiresShop(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Submit(context.Background(), "", []domain.ProductSnapshot{widget()})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSubmit_SkipsInvalidItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	invalid := widget()
	invalid.ProductID = 0
	accepted, err := env.service.Submit(ctx, testShop, []domain.ProductSnapshot{invalid, widget()})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, env.observer.submitted[ports.OutcomeFailed])
}

func TestSubmit_ConcurrentBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.configureEndpoint(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			snapshot := widget()
			snapshot.ProductID = id
			_, err := env.service.Submit(ctx, testShop, []domain.ProductSnapshot{snapshot})
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	products, err := env.workflow.GetProductsByStatus(ctx, testShop, domain.ProductImprovementPending)
	require.NoError(t, err)
	assert.Len(t, products, n)

	improvements, err := env.workflow.GetImprovementsByStatus(ctx, domain.ImprovementPendingApproval)
	require.NoError(t, err)
	assert.Len(t, improvements, n)
}

func TestSubmitByID_FetchesFromCatalog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.catalog.snapshots[123] = widget()

	accepted, err := env.service.SubmitByID(ctx, testShop, []int64{123, 999})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)

	product, err := env.workflow.GetProduct(ctx, domain.ProductKey(testShop, 123))
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "Widget", product.Title)
}

func submitOne(t *testing.T, env *testEnv) *domain.Improvement {
	t.Helper()
	env.configureEndpoint(t)
	_, err := env.service.Submit(context.Background(), testShop, []domain.ProductSnapshot{widget()})
	require.NoError(t, err)
	improvements, err := env.workflow.GetImprovementsByStatus(context.Background(), domain.ImprovementPendingApproval)
	require.NoError(t, err)
	require.Len(t, improvements, 1)
	return improvements[0]
}

func TestApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	improvement := submitOne(t, env)

	approved, err := env.service.Approve(ctx, improvement.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImprovementApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)
	assert.NotNil(t, approved.AppliedAt)

	product, err := env.workflow.GetProduct(ctx, improvement.ProductID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductImproved, product.Status)

	require.Len(t, env.catalog.updates, 1)
	call := env.catalog.updates[0]
	assert.Equal(t, testShop, call.shop)
	assert.Equal(t, int64(123), call.productID)
	assert.Equal(t, "Improved: Widget", call.update.Title)
	assert.Equal(t, "Enhanced Widget", call.update.Body)
	assert.Equal(t, "Widget | Shop", call.update.SEOTitle)
	assert.Equal(t, "Buy Widget", call.update.SEODescription)

	assert.Equal(t, 1, env.observer.decisions[string(domain.ImprovementApproved)])
	assert.Contains(t, env.events.kinds(), domain.EventImprovementApproved)
}

func TestApprove_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	improvement := submitOne(t, env)

	first, err := env.service.Approve(ctx, improvement.ID)
	require.NoError(t, err)
	second, err := env.service.Approve(ctx, improvement.ID)
	require.NoError(t, err)

	require.NotNil(t, second.ApprovedAt)
	assert.True(t, first.ApprovedAt.Equal(*second.ApprovedAt))
	assert.Len(t, env.catalog.updates, 1)
	assert.Equal(t, 1, env.observer.decisions[string(domain.ImprovementApproved)])
}

func TestApprove_NotFoundChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	improvement := submitOne(t, env)

	_, err := env.service.Approve(ctx, "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := env.workflow.GetImprovement(ctx, improvement.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImprovementPendingApproval, stored.Status)
	product, err := env.workflow.GetProduct(ctx, improvement.ProductID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductImprovementPending, product.Status)
	assert.Empty(t, env.catalog.updates)
}

func TestApprove_CatalogFailureKeepsApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	improvement := submitOne(t, env)
	env.catalog.updateErr = errBoom

	approved, err := env.service.Approve(ctx, improvement.ID)
	assert.ErrorIs(t, err, domain.ErrExternalUpdateFailed)
	require.NotNil(t, approved)
	assert.Equal(t, domain.ImprovementApproved, approved.Status)

	stored, err := env.workflow.GetImprovement(ctx, improvement.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImprovementApproved, stored.Status)
	assert.Equal(t, 1, env.observer.failures)
}

func TestApprove_TitleFallsBackToProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.configureEndpoint(t)
	product, err := env.workflow.SaveProduct(ctx, testShop, widget())
	require.NoError(t, err)
	improvement, err := env.workflow.SaveImprovement(ctx, product.ID, domain.ImprovementData{Description: "Only a body"})
	require.NoError(t, err)

	_, err = env.service.Approve(ctx, improvement.ID)
	require.NoError(t, err)
	require.Len(t, env.catalog.updates, 1)
	assert.Equal(t, "Widget", env.catalog.updates[0].update.Title)
	assert.Equal(t, "Only a body", env.catalog.updates[0].update.Body)
}

func TestReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	improvement := submitOne(t, env)

	rejected, err := env.service.Reject(ctx, improvement.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImprovementRejected, rejected.Status)
	assert.NotNil(t, rejected.RejectedAt)

	product, err := env.workflow.GetProduct(ctx, improvement.ProductID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductImprovementPending, product.Status)
	assert.Empty(t, env.catalog.updates)

	again, err := env.service.Reject(ctx, improvement.ID)
	require.NoError(t, err)
	require.NotNil(t, again.RejectedAt)
	assert.True(t, rejected.RejectedAt.Equal(*again.RejectedAt))

	_, err = env.service.Reject(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecisions_CannotCross(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	improvement := submitOne(t, env)

	_, err := env.service.Reject(ctx, improvement.ID)
	require.NoError(t, err)
	_, err = env.service.Approve(ctx, improvement.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApprove_ConcurrentCallsApplyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	improvement := submitOne(t, env)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			approved, err := env.service.Approve(ctx, improvement.ID)
			assert.NoError(t, err)
			assert.Equal(t, domain.ImprovementApproved, approved.Status)
		}()
	}
	wg.Wait()

	assert.Len(t, env.catalog.updates, 1)
}

func TestPendingReviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.configureEndpoint(t)

	_, err := env.service.Submit(ctx, testShop, []domain.ProductSnapshot{widget()})
	require.NoError(t, err)
	_, err = env.service.Submit(ctx, "b.myshopify.com", []domain.ProductSnapshot{widget()})
	require.NoError(t, err)

	reviews, err := env.service.PendingReviews(ctx, testShop)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	review := reviews[0]
	assert.Equal(t, "Widget", review.Original.Title)
	assert.Equal(t, "A widget", review.Original.Description)
	assert.Equal(t, "https://cdn.example.com/w.png", review.Original.Image)
	assert.Equal(t, "Improved: Widget", review.Improved.Title)
	assert.Equal(t, "https://cdn.example.com/w.png", review.Improved.Image)
	require.NotNil(t, review.SEO)

	all, err := env.service.PendingReviews(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestShopOf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	improvement := submitOne(t, env)

	shop, err := env.service.ShopOf(ctx, improvement.ID)
	require.NoError(t, err)
	assert.Equal(t, testShop, shop)

	_, err = env.service.ShopOf(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmit_RepeatedProductInBatchIsTakenOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.configureEndpoint(t)

	revised := widget()
	revised.Title = "Widget v2"
	accepted, err := env.service.Submit(ctx, testShop, []domain.ProductSnapshot{widget(), revised})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, env.enhancer.calls)

	improvements, err := env.workflow.GetImprovementsByStatus(ctx, domain.ImprovementPendingApproval)
	require.NoError(t, err)
	require.Len(t, improvements, 1)
	assert.Equal(t, "Improved: Widget v2", improvements[0].ImprovedTitle)

	product, err := env.workflow.GetProduct(ctx, domain.ProductKey(testShop, 123))
	require.NoError(t, err)
	assert.Equal(t, "Widget v2", product.Title)
}

func TestSubmit_ReselectionSupersedesPendingImprovement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	older := submitOne(t, env)

	time.Sleep(2 * time.Millisecond)
	_, err := env.service.Submit(ctx, testShop, []domain.ProductSnapshot{widget()})
	require.NoError(t, err)

	pending, err := env.workflow.GetImprovementsByStatus(ctx, domain.ImprovementPendingApproval)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	newer := pending[0]
	assert.NotEqual(t, older.ID, newer.ID)

	stale, err := env.workflow.GetImprovement(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImprovementRejected, stale.Status)

	reviews, err := env.service.PendingReviews(ctx, testShop)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, newer.ID, reviews[0].ID)

	_, err = env.service.Approve(ctx, older.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.service.Approve(ctx, newer.ID)
	require.NoError(t, err)
	product, err := env.workflow.GetProduct(ctx, newer.ProductID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductImproved, product.Status)
	assert.Len(t, env.catalog.updates, 1)

	left, err := env.workflow.GetImprovementsByStatus(ctx, domain.ImprovementPendingApproval)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSubmit_StatusUpdateFailureWithdrawsImprovement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.configureEndpoint(t)
	service := env.serviceOver(failingStatusRepo{WorkflowRepository: env.workflow})

	accepted, err := service.Submit(ctx, testShop, []domain.ProductSnapshot{widget()})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, env.observer.submitted[ports.OutcomeFailed])
	assert.Zero(t, env.observer.created)
	assert.NotContains(t, env.events.kinds(), domain.EventImprovementCreated)

	product, err := env.workflow.GetProduct(ctx, domain.ProductKey(testShop, 123))
	require.NoError(t, err)
	assert.Equal(t, domain.ProductPendingImprovement, product.Status)

	pending, err := env.workflow.GetImprovementsByStatus(ctx, domain.ImprovementPendingApproval)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = env.service.Submit(ctx, testShop, []domain.ProductSnapshot{widget()})
	require.NoError(t, err)
	pending, err = env.workflow.GetImprovementsByStatus(ctx, domain.ImprovementPendingApproval)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestApprove_MissingProductChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	improvement := submitOne(t, env)
	service := env.serviceOver(missingProductRepo{WorkflowRepository: env.workflow})

	approved, err := service.Approve(ctx, improvement.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, approved)

	stored, err := env.workflow.GetImprovement(ctx, improvement.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImprovementPendingApproval, stored.Status)
	assert.Nil(t, stored.ApprovedAt)
	assert.Empty(t, env.catalog.updates)
}

func TestApprove_RejectsOtherPendingImprovementsOfProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, err := env.workflow.SaveProduct(ctx, testShop, widget())
	require.NoError(t, err)
	first, err := env.workflow.SaveImprovement(ctx, product.ID, domain.ImprovementData{Title: "First"})
	require.NoError(t, err)
	second, err := env.workflow.SaveImprovement(ctx, product.ID, domain.ImprovementData{Title: "Second"})
	require.NoError(t, err)

	_, err = env.service.Approve(ctx, first.ID)
	require.NoError(t, err)

	other, err := env.workflow.GetImprovement(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImprovementRejected, other.Status)
	assert.Len(t, env.catalog.updates, 1)
}

func TestPendingReviews_NewestFirstOnePerProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gadget := widget()
	gadget.ProductID = 456
	gadget.Title = "Gadget"
	widgetProduct, err := env.workflow.SaveProduct(ctx, testShop, widget())
	require.NoError(t, err)
	gadgetProduct, err := env.workflow.SaveProduct(ctx, testShop, gadget)
	require.NoError(t, err)

	_, err = env.workflow.SaveImprovement(ctx, widgetProduct.ID, domain.ImprovementData{Title: "Widget 1"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = env.workflow.SaveImprovement(ctx, gadgetProduct.ID, domain.ImprovementData{Title: "Gadget 1"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = env.workflow.SaveImprovement(ctx, widgetProduct.ID, domain.ImprovementData{Title: "Widget 2"})
	require.NoError(t, err)

	reviews, err := env.service.PendingReviews(ctx, testShop)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "Widget 2", reviews[0].Improved.Title)
	assert.Equal(t, "Gadget 1", reviews[1].Improved.Title)
}

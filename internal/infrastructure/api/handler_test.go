package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shopify-improvement-core/internal/application"
	"shopify-improvement-core/internal/application/webhook_handlers"
	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/infrastructure/encryption"
	"shopify-improvement-core/internal/infrastructure/enhancement"
	"shopify-improvement-core/internal/infrastructure/pubsub"
	"shopify-improvement-core/internal/infrastructure/repository"
	"shopify-improvement-core/internal/infrastructure/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShop = "a.myshopify.com"

type stubVerifier bool

func (v stubVerifier) Verify(r *http.Request) bool { return bool(v) }

type stubCatalog struct {
	snapshots map[int64]domain.ProductSnapshot
	updates   int
}

func (c *stubCatalog) FetchSnapshot(ctx context.Context, shop string, id int64) (*domain.ProductSnapshot, error) {
	s, ok := c.snapshots[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (c *stubCatalog) ListSnapshots(ctx context.Context, shop string, limit int) ([]domain.ProductSnapshot, error) {
	out := make([]domain.ProductSnapshot, 0, len(c.snapshots))
	for _, s := range c.snapshots {
		out = append(out, s)
	}
	return out, nil
}

func (c *stubCatalog) ApplyApprovedImprovement(ctx context.Context, shop string, id int64, update domain.CatalogUpdate) error {
	c.updates++
	return nil
}

type apiEnv struct {
	server      *httptest.Server
	workflow    *repository.WorkflowRepository
	credentials *repository.CredentialRepository
	catalog     *stubCatalog
	events      *pubsub.ImprovementPubSub
	sessionID   string
}

func newAPIEnv(t *testing.T, verified bool) *apiEnv {
	t.Helper()
	medium, err := storage.NewFileMedium(t.TempDir())
	require.NoError(t, err)
	db := storage.NewDB(medium, zerolog.Nop())
	codec, err := encryption.NewService("api-test-secret")
	require.NoError(t, err)

	env := &apiEnv{
		workflow:    repository.NewWorkflowRepository(db, codec, zerolog.Nop()),
		credentials: repository.NewCredentialRepository(db, codec, zerolog.Nop()),
		catalog: &stubCatalog{snapshots: map[int64]domain.ProductSnapshot{
			123: {ProductID: 123, Title: "Widget", Description: "A widget"},
		}},
		events: pubsub.NewImprovementPubSub(zerolog.Nop()),
	}

	installer := application.NewInstallationService(env.credentials, zerolog.Nop())
	improvements := application.NewImprovementService(application.ImprovementServiceConfig{
		Workflow:           env.workflow,
		Credentials:        env.credentials,
		Enhancers:          enhancement.NewFactory("simulate", time.Second, zerolog.Nop()),
		CatalogReader:      env.catalog,
		CatalogUpdater:     env.catalog,
		Events:             env.events,
		EnhancementTimeout: time.Second,
		CatalogTimeout:     time.Second,
		Logger:             zerolog.Nop(),
	})
	dispatcher := webhook_handlers.NewDispatcher(env.workflow, zerolog.Nop(),
		webhook_handlers.NewAppUninstalledHandler(zerolog.Nop(), installer))

	handler := NewHandler(HandlerConfig{
		Improvements: improvements,
		Settings:     application.NewSettingsService(env.workflow, env.credentials, "https://default.example.com", zerolog.Nop()),
		Installer:    installer,
		Dispatcher:   dispatcher,
		Credentials:  env.credentials,
		Products:     env.catalog,
		Verifier:     stubVerifier(verified),
		Events:       env.events,
		Metrics:      http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		DevMode:      true,
		Logger:       zerolog.Nop(),
	})
	env.server = httptest.NewServer(handler.Router())
	t.Cleanup(env.server.Close)

	_, session, err := installer.CompleteInstall(context.Background(), testShop, "shpat", "read_products,write_products")
	require.NoError(t, err)
	env.sessionID = session.ID
	return env
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	m, _ := decoded.(map[string]any)
	return resp, m
}

func (e *apiEnv) authed() map[string]string {
	return map[string]string{SessionHeader: e.sessionID}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newAPIEnv(t, true)

	resp, body := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionRequired(t *testing.T) {
	env := newAPIEnv(t, true)

	resp, _ := env.do(t, http.MethodGet, "/api/improvements/pending", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/improvements/pending", nil, map[string]string{SessionHeader: "unknown"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired := time.Now().Add(-time.Hour)
	require.True(t, env.credentials.StoreSession(context.Background(), &domain.Session{
		ID: "online_1", Shop: testShop, IsOnline: true, Expires: &expired, AccessToken: "t",
	}))
	resp, body := env.do(t, http.MethodGet, "/api/improvements/pending", nil, map[string]string{SessionHeader: "online_1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "session expired", body["error"])
}

func TestImproveApproveFlow(t *testing.T) {
	env := newAPIEnv(t, true)

	resp, body := env.do(t, http.MethodPost, "/api/settings", map[string]string{"endpoint": "https://improve.example.com", "token": "svc"}, env.authed())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["token"])

	resp, body = env.do(t, http.MethodPost, "/api/products/improve", map[string]any{
		"products": []map[string]any{{"id": 123, "title": "Widget", "body_html": "A widget"}},
	}, env.authed())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["accepted"])

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/improvements/pending", nil)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, env.sessionID)
	pendingResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var reviews []domain.ImprovementReview
	require.NoError(t, json.NewDecoder(pendingResp.Body).Decode(&reviews))
	pendingResp.Body.Close()
	require.Len(t, reviews, 1)
	assert.Equal(t, "Improved: Widget", reviews[0].Improved.Title)
	assert.Equal(t, "Widget", reviews[0].Original.Title)

	resp, body = env.do(t, http.MethodPost, "/api/improvements/"+reviews[0].ID+"/approve", nil, env.authed())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, env.catalog.updates)

	resp, _ = env.do(t, http.MethodPost, "/api/improvements/"+reviews[0].ID+"/reject", nil, env.authed())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/improvements/missing/approve", nil, env.authed())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImprovementsOfOtherShopsAreHidden(t *testing.T) {
	env := newAPIEnv(t, true)
	ctx := context.Background()

	product, err := env.workflow.SaveProduct(ctx, "other.myshopify.com", domain.ProductSnapshot{ProductID: 9, Title: "Theirs"})
	require.NoError(t, err)
	improvement, err := env.workflow.SaveImprovement(ctx, product.ID, domain.ImprovementData{Title: "Better"})
	require.NoError(t, err)

	resp, _ := env.do(t, http.MethodPost, "/api/improvements/"+improvement.ID+"/approve", nil, env.authed())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	stored, err := env.workflow.GetImprovement(ctx, improvement.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImprovementPendingApproval, stored.Status)
}

func TestSelectAndListProducts(t *testing.T) {
	env := newAPIEnv(t, true)

	resp, body := env.do(t, http.MethodGet, "/api/products?limit=10", nil, env.authed())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["products"], 1)

	resp, _ = env.do(t, http.MethodGet, "/api/products?limit=0", nil, env.authed())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/products/select", map[string]any{"product_ids": []int64{123}}, env.authed())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["accepted"])

	product, err := env.workflow.GetProduct(context.Background(), domain.ProductKey(testShop, 123))
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, domain.ProductPendingImprovement, product.Status)
}

func TestValidationErrors(t *testing.T) {
	env := newAPIEnv(t, true)

	resp, body := env.do(t, http.MethodPost, "/api/products/improve", map[string]any{"products": []any{}}, env.authed())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation failed", body["error"])

	resp, _ = env.do(t, http.MethodPost, "/api/products/select", map[string]any{"product_ids": []int64{-1}}, env.authed())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/settings", map[string]any{"endpoint": "not a url"}, env.authed())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSettings(t *testing.T) {
	env := newAPIEnv(t, true)

	resp, body := env.do(t, http.MethodGet, "/api/settings", nil, env.authed())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", body["endpoint"])
	assert.Equal(t, false, body["token"])
	assert.Equal(t, "https://default.example.com", body["default_endpoint"])
	store, ok := body["store"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, store["improvement_api_enabled"])

	resp, body = env.do(t, http.MethodPost, "/api/settings", map[string]any{"improvement_api_enabled": false}, env.authed())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	store, ok = body["store"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, store["improvement_api_enabled"])
	assert.NotEmpty(t, store["api_key"])
}

func TestWebhook(t *testing.T) {
	env := newAPIEnv(t, true)
	headers := map[string]string{
		"X-Shopify-Topic":       "app/uninstalled",
		"X-Shopify-Shop-Domain": testShop,
		"X-Shopify-Webhook-Id":  "wh-1",
	}

	resp, body := env.do(t, http.MethodPost, "/webhooks/shopify", map[string]string{"myshopify_domain": testShop}, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["processed"])

	resp, body = env.do(t, http.MethodPost, "/webhooks/shopify", map[string]string{"myshopify_domain": testShop}, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["processed"])

	// the uninstall removed the session
	resp, _ = env.do(t, http.MethodGet, "/api/improvements/pending", nil, env.authed())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	env := newAPIEnv(t, false)
	resp, _ := env.do(t, http.MethodPost, "/webhooks/shopify", map[string]string{}, map[string]string{"X-Shopify-Topic": "app/uninstalled"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDevInstall(t *testing.T) {
	env := newAPIEnv(t, true)

	resp, body := env.do(t, http.MethodPost, "/dev/install", map[string]string{"shop": "c.myshopify.com", "access_token": "shpat_c"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "offline_c.myshopify.com", body["session_id"])

	resp, _ = env.do(t, http.MethodPost, "/dev/install", map[string]string{"shop": "c.myshopify.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImprovementEventStream(t *testing.T) {
	env := newAPIEnv(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/api/improvements/events", nil)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, env.sessionID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return env.events.ActiveSubscriptions() == 1 }, time.Second, 10*time.Millisecond)
	env.events.Publish(&domain.ImprovementEvent{Kind: domain.EventImprovementCreated, Shop: "other.myshopify.com", ImprovementID: "theirs"})
	env.events.Publish(&domain.ImprovementEvent{Kind: domain.EventImprovementCreated, Shop: testShop, ImprovementID: "mine"})

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: improvement.created\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: "))
	assert.Contains(t, line, `"improvement_id":"mine"`)
}

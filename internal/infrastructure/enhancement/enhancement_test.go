package enhancement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopify-improvement-core/internal/config"
	"shopify-improvement-core/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() domain.ImprovementData {
	return domain.ImprovementData{
		Title:       "Widget",
		Description: "A widget",
		Images:      []domain.Image{{Src: "https://cdn.example.com/w.png"}},
	}
}

func TestHTTPEnhancer_Success(t *testing.T) {
	var gotAuth string
	var gotBody domain.ImprovementData
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":       "Premium Widget",
			"description": "A better widget",
			"seo":         map[string]string{"title": "Widget", "description": "Buy it"},
		})
	}))
	defer server.Close()

	enhancer := NewHTTPEnhancer(server.URL, "secret-token", time.Second, zerolog.Nop())
	improved, err := enhancer.Enhance(context.Background(), sampleData())
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "Widget", gotBody.Title)
	assert.Equal(t, "Premium Widget", improved.Title)
	assert.Equal(t, "A better widget", improved.Description)
	require.NotNil(t, improved.SEO)
	assert.Equal(t, "Buy it", improved.SEO.Description)
	// images omitted by the service fall back to the originals
	assert.Equal(t, sampleData().Images, improved.Images)
}

func TestHTTPEnhancer_NoTokenSendsNoAuthorization(t *testing.T) {
	var hadAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`{"title":"t","description":"d","images":[]}`))
	}))
	defer server.Close()

	_, err := NewHTTPEnhancer(server.URL, "", time.Second, zerolog.Nop()).Enhance(context.Background(), sampleData())
	require.NoError(t, err)
	assert.False(t, hadAuth)
}

func TestHTTPEnhancer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"empty payload", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewHTTPEnhancer(server.URL, "tok", time.Second, zerolog.Nop()).Enhance(context.Background(), sampleData())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
		})
	}
}

func TestHTTPEnhancer_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPEnhancer(server.URL, "tok", time.Second, zerolog.Nop()).Enhance(ctx, sampleData())
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
}

func TestSimulator(t *testing.T) {
	improved, err := Simulator{}.Enhance(context.Background(), sampleData())
	require.NoError(t, err)

	assert.Equal(t, "Improved: Widget", improved.Title)
	assert.Equal(t, "Enhanced description for Widget. This product features premium quality and exceptional value.", improved.Description)
	assert.Equal(t, sampleData().Images, improved.Images)
}

func TestFactory(t *testing.T) {
	httpFactory := NewFactory(config.EnhancerHTTP, time.Second, zerolog.Nop())

	enhancer, err := httpFactory.NewEnhancer("https://improve.example.com/v1", "tok")
	require.NoError(t, err)
	assert.IsType(t, &HTTPEnhancer{}, enhancer)

	for _, endpoint := range []string{"", "not a url", "ftp://example.com", "/relative"} {
		_, err := httpFactory.NewEnhancer(endpoint, "tok")
		assert.ErrorIs(t, err, domain.ErrMisconfigured, endpoint)
	}

	enhancer, err = NewFactory(config.EnhancerSimulate, time.Second, zerolog.Nop()).NewEnhancer("", "")
	require.NoError(t, err)
	assert.IsType(t, Simulator{}, enhancer)
}

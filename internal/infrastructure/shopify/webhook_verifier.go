package shopify

import (
	"bytes"
	"io"
	"net/http"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// WebhookVerifier checks the X-Shopify-Hmac-Sha256 signature of webhook deliveries
type WebhookVerifier struct {
	app goshopify.App
}

// NewWebhookVerifier creates a verifier for the app's shared secret
func NewWebhookVerifier(apiKey, apiSecret string) *WebhookVerifier {
	return &WebhookVerifier{app: goshopify.App{ApiKey: apiKey, ApiSecret: apiSecret}}
}

// Verify reports whether r carries a valid signature. The body remains readable afterwards.
func (v *WebhookVerifier) Verify(r *http.Request) bool {
	if v.app.ApiSecret == "" || r.Body == nil {
		return false
	}

	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return false
	}

	probe := r.Clone(r.Context())
	probe.Body = io.NopCloser(bytes.NewReader(body))
	return v.app.VerifyWebhookRequest(probe)
}

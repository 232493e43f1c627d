package enhancement

import (
	"fmt"
	"net/url"
	"time"

	"shopify-improvement-core/internal/config"
	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	"github.com/rs/zerolog"
)

// Factory builds enhancers for the configured mode
type Factory struct {
	mode    string
	timeout time.Duration
	logger  zerolog.Logger
}

var _ ports.EnhancerFactory = (*Factory)(nil)

// NewFactory creates a factory; mode is config.EnhancerHTTP or config.EnhancerSimulate
func NewFactory(mode string, timeout time.Duration, logger zerolog.Logger) *Factory {
	return &Factory{mode: mode, timeout: timeout, logger: logger}
}

// NewEnhancer returns an enhancer bound to endpoint and token.
// An endpoint that is not an absolute http(s) URL is a misconfiguration.
func (f *Factory) NewEnhancer(endpoint, token string) (ports.Enhancer, error) {
	if f.mode == config.EnhancerSimulate {
		return Simulator{}, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid enhancement endpoint %q", domain.ErrMisconfigured, endpoint)
	}
	return NewHTTPEnhancer(endpoint, token, f.timeout, f.logger.With().Str("component", "enhancer").Logger()), nil
}

package domain

import "context"

type contextKey string

const (
	shopDomainKey contextKey = "shop_domain"
	sessionKey    contextKey = "session"
)

// WithShopDomain stores the resolved tenant domain in the context
func WithShopDomain(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, shopDomainKey, shop)
}

// GetShopDomainFromContext returns the tenant domain, or "" when absent
func GetShopDomainFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(shopDomainKey).(string); ok {
		return v
	}
	return ""
}

// WithSession stores the authenticated session in the context
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// GetSessionFromContext returns the authenticated session, or nil
func GetSessionFromContext(ctx context.Context) *Session {
	if v, ok := ctx.Value(sessionKey).(*Session); ok {
		return v
	}
	return nil
}

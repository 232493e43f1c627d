package shopify

import (
	"errors"
	"net/http"
	"strings"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// IsTokenRejected reports whether err means the access token is invalid or revoked.
// go-shopify surfaces HTTP failures as ResponseError; other errors are matched by message.
func IsTokenRejected(err error) bool {
	if err == nil {
		return false
	}

	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		return respErr.Status == http.StatusUnauthorized || respErr.Status == http.StatusForbidden
	}
	var respErrPtr *goshopify.ResponseError
	if errors.As(err, &respErrPtr) && respErrPtr != nil {
		return respErrPtr.Status == http.StatusUnauthorized || respErrPtr.Status == http.StatusForbidden
	}

	return containsAny(err.Error(), []string{"401", "unauthorized", "invalid api key or access token", "forbidden"})
}

// IsNotFound reports whether err is a 404 from the Admin API
func IsNotFound(err error) bool {
	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		return respErr.Status == http.StatusNotFound
	}
	var respErrPtr *goshopify.ResponseError
	if errors.As(err, &respErrPtr) && respErrPtr != nil {
		return respErrPtr.Status == http.StatusNotFound
	}
	return false
}

// containsAny checks if a string contains any of the substrings (case-insensitive)
func containsAny(s string, substrings []string) bool {
	sLower := strings.ToLower(s)
	for _, substr := range substrings {
		if strings.Contains(sLower, strings.ToLower(substr)) {
			return true
		}
	}
	return false
}

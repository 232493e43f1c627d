package domain

import "time"

// ImprovementAPIService is the ApiToken service name of the enhancement integration
const ImprovementAPIService = "improvement_api"

// MetadataEndpoint is the ApiToken metadata key holding the service endpoint
const MetadataEndpoint = "endpoint"

// APIToken is a named credential for an external service, unique per Service
type APIToken struct {
	ID        string            `json:"id"`
	Service   string            `json:"service"`
	Token     string            `json:"-"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Endpoint returns the configured endpoint, or "" when the metadata lacks one
func (t *APIToken) Endpoint() string {
	if t == nil || t.Metadata == nil {
		return ""
	}
	return t.Metadata[MetadataEndpoint]
}

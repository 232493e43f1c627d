package domain

import "time"

// ImprovementStatus is the review state of a proposed revision
type ImprovementStatus string

const (
	ImprovementPendingApproval ImprovementStatus = "pending_approval"
	ImprovementApproved        ImprovementStatus = "approved"
	ImprovementRejected        ImprovementStatus = "rejected"
)

// SEO holds the proposed search-engine title and description
type SEO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ImprovementData is the enhancement payload, both request and response
type ImprovementData struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Images      []Image `json:"images"`
	SEO         *SEO    `json:"seo,omitempty"`
}

// Improvement is one proposed revision of a Product awaiting review
type Improvement struct {
	ID                  string            `json:"id"`
	ProductID           string            `json:"product_id"`
	ImprovedTitle       string            `json:"improved_title"`
	ImprovedDescription string            `json:"improved_description"`
	ImprovedImages      []Image           `json:"improved_images"`
	ImprovedSEO         *SEO              `json:"improved_seo,omitempty"`
	Status              ImprovementStatus `json:"status"`
	ApprovedAt          *time.Time        `json:"approved_at,omitempty"`
	RejectedAt          *time.Time        `json:"rejected_at,omitempty"`
	AppliedAt           *time.Time        `json:"applied_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// ImprovementReview pairs a pending improvement with the original product data
type ImprovementReview struct {
	ID       string       `json:"id"`
	Original ReviewFields `json:"original"`
	Improved ReviewFields `json:"improved"`
	SEO      *SEO         `json:"seo,omitempty"`
}

// ReviewFields is one side of an ImprovementReview
type ReviewFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// CatalogUpdate is the payload pushed to the catalog when an improvement is approved
type CatalogUpdate struct {
	Title          string
	Body           string
	SEOTitle       string
	SEODescription string
}

// ImprovementEventKind names a workflow transition published to subscribers
type ImprovementEventKind string

const (
	EventImprovementCreated  ImprovementEventKind = "improvement.created"
	EventImprovementApproved ImprovementEventKind = "improvement.approved"
	EventImprovementRejected ImprovementEventKind = "improvement.rejected"
)

// ImprovementEvent is emitted after an improvement is created or decided
type ImprovementEvent struct {
	Kind          ImprovementEventKind `json:"kind"`
	Shop          string               `json:"shop"`
	ImprovementID string               `json:"improvement_id"`
	ProductKey    string               `json:"product_key"`
	Status        ImprovementStatus    `json:"status"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

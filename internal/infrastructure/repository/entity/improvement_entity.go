package entity

import (
	"time"

	"shopify-improvement-core/internal/domain"
)

type SEORecord struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ImprovementRecord is the persisted form of an Improvement
type ImprovementRecord struct {
	ID                  RecordID      `json:"id"`
	ProductID           string        `json:"product_id"`
	ImprovedTitle       string        `json:"improved_title"`
	ImprovedDescription string        `json:"improved_description"`
	ImprovedImages      []ImageRecord `json:"improved_images"`
	ImprovedSEO         *SEORecord    `json:"improved_seo,omitempty"`
	Status              string        `json:"status"`
	ApprovedAt          *time.Time    `json:"approved_at,omitempty"`
	RejectedAt          *time.Time    `json:"rejected_at,omitempty"`
	AppliedAt           *time.Time    `json:"applied_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// ImprovementKey identifies an improvement record by id
func ImprovementKey(r *ImprovementRecord) string { return string(r.ID) }

// NewImprovementRecord builds a pending_approval record for productKey
func NewImprovementRecord(id, productKey string, data domain.ImprovementData, now time.Time) ImprovementRecord {
	record := ImprovementRecord{
		ID:                  RecordID(id),
		ProductID:           productKey,
		ImprovedTitle:       data.Title,
		ImprovedDescription: data.Description,
		ImprovedImages:      ImageRecordsFromDomain(data.Images),
		Status:              string(domain.ImprovementPendingApproval),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if data.SEO != nil {
		record.ImprovedSEO = &SEORecord{Title: data.SEO.Title, Description: data.SEO.Description}
	}
	return record
}

func (r *ImprovementRecord) ToDomain() *domain.Improvement {
	improvement := &domain.Improvement{
		ID:                  string(r.ID),
		ProductID:           r.ProductID,
		ImprovedTitle:       r.ImprovedTitle,
		ImprovedDescription: r.ImprovedDescription,
		ImprovedImages:      ImagesToDomain(r.ImprovedImages),
		Status:              domain.ImprovementStatus(r.Status),
		ApprovedAt:          r.ApprovedAt,
		RejectedAt:          r.RejectedAt,
		AppliedAt:           r.AppliedAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.ImprovedSEO != nil {
		improvement.ImprovedSEO = &domain.SEO{Title: r.ImprovedSEO.Title, Description: r.ImprovedSEO.Description}
	}
	return improvement
}

// ApplyStatus sets status and stamps the matching decision times
func (r *ImprovementRecord) ApplyStatus(status domain.ImprovementStatus, now time.Time) {
	r.Status = string(status)
	r.UpdatedAt = now
	switch status {
	case domain.ImprovementApproved:
		r.ApprovedAt = &now
		r.AppliedAt = &now
	case domain.ImprovementRejected:
		r.RejectedAt = &now
	}
}

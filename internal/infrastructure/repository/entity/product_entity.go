package entity

import (
	"time"

	"shopify-improvement-core/internal/domain"
)

type ImageRecord struct {
	ID       int64  `json:"id,omitempty"`
	Src      string `json:"src"`
	Alt      string `json:"alt,omitempty"`
	Position int    `json:"position,omitempty"`
}

type VariantRecord struct {
	ID                int64  `json:"id,omitempty"`
	Title             string `json:"title,omitempty"`
	SKU               string `json:"sku,omitempty"`
	Price             string `json:"price,omitempty"`
	InventoryQuantity int    `json:"inventory_quantity,omitempty"`
}

// ProductRecord is the persisted form of a Product
type ProductRecord struct {
	ID          string          `json:"id"`
	ShopDomain  string          `json:"shop_domain"`
	ProductID   int64           `json:"product_id"`
	Title       string          `json:"title"`
	Handle      string          `json:"handle"`
	Description string          `json:"description"`
	Vendor      string          `json:"vendor"`
	ProductType string          `json:"product_type"`
	Images      []ImageRecord   `json:"images"`
	Variants    []VariantRecord `json:"variants"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (r *ProductRecord) GetCreatedAt() time.Time  { return r.CreatedAt }
func (r *ProductRecord) SetCreatedAt(t time.Time) { r.CreatedAt = t }

// ProductKey identifies a product record by its composite id
func ProductKey(r *ProductRecord) string { return r.ID }

// ProductRecordFromSnapshot builds a pending_improvement record for shopDomain
func ProductRecordFromSnapshot(shopDomain string, s domain.ProductSnapshot, now time.Time) ProductRecord {
	return ProductRecord{
		ID:          domain.ProductKey(shopDomain, s.ProductID),
		ShopDomain:  shopDomain,
		ProductID:   s.ProductID,
		Title:       s.Title,
		Handle:      s.Handle,
		Description: s.Description,
		Vendor:      s.Vendor,
		ProductType: s.ProductType,
		Images:      ImageRecordsFromDomain(s.Images),
		Variants:    variantRecordsFromDomain(s.Variants),
		Status:      string(domain.ProductPendingImprovement),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *ProductRecord) ToDomain() *domain.Product {
	variants := make([]domain.Variant, 0, len(r.Variants))
	for _, v := range r.Variants {
		variants = append(variants, domain.Variant{
			ID:                v.ID,
			Title:             v.Title,
			SKU:               v.SKU,
			Price:             v.Price,
			InventoryQuantity: v.InventoryQuantity,
		})
	}
	return &domain.Product{
		ID:          r.ID,
		ShopDomain:  r.ShopDomain,
		ProductID:   r.ProductID,
		Title:       r.Title,
		Handle:      r.Handle,
		Description: r.Description,
		Vendor:      r.Vendor,
		ProductType: r.ProductType,
		Images:      ImagesToDomain(r.Images),
		Variants:    variants,
		Status:      domain.ProductStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func ImageRecordsFromDomain(images []domain.Image) []ImageRecord {
	records := make([]ImageRecord, 0, len(images))
	for _, img := range images {
		records = append(records, ImageRecord{ID: img.ID, Src: img.Src, Alt: img.Alt, Position: img.Position})
	}
	return records
}

func ImagesToDomain(records []ImageRecord) []domain.Image {
	images := make([]domain.Image, 0, len(records))
	for _, r := range records {
		images = append(images, domain.Image{ID: r.ID, Src: r.Src, Alt: r.Alt, Position: r.Position})
	}
	return images
}

func variantRecordsFromDomain(variants []domain.Variant) []VariantRecord {
	records := make([]VariantRecord, 0, len(variants))
	for _, v := range variants {
		records = append(records, VariantRecord{
			ID:                v.ID,
			Title:             v.Title,
			SKU:               v.SKU,
			Price:             v.Price,
			InventoryQuantity: v.InventoryQuantity,
		})
	}
	return records
}

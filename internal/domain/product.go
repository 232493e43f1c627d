package domain

import (
	"fmt"
	"time"
)

// ProductStatus is the workflow state of a tracked catalog item
type ProductStatus string

const (
	ProductPendingImprovement ProductStatus = "pending_improvement"
	ProductImprovementPending ProductStatus = "improvement_pending"
	ProductImproved           ProductStatus = "improved"
)

// Image is an ordered image reference of a catalog item
type Image struct {
	ID       int64  `json:"id,omitempty"`
	Src      string `json:"src"`
	Alt      string `json:"alt,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Variant is a snapshot of one catalog variant
type Variant struct {
	ID                int64  `json:"id,omitempty"`
	Title             string `json:"title,omitempty"`
	SKU               string `json:"sku,omitempty"`
	Price             string `json:"price,omitempty"`
	InventoryQuantity int    `json:"inventory_quantity,omitempty"`
}

// ProductSnapshot is the catalog data submitted for improvement
type ProductSnapshot struct {
	ProductID   int64     `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Description string    `json:"body_html"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"product_type"`
	Images      []Image   `json:"images"`
	Variants    []Variant `json:"variants"`
}

// Product is a tenant-owned snapshot tracked by the improvement workflow.
// ID is the composite key of ShopDomain and ProductID.
type Product struct {
	ID          string        `json:"id"`
	ShopDomain  string        `json:"shop_domain"`
	ProductID   int64         `json:"product_id"`
	Title       string        `json:"title"`
	Handle      string        `json:"handle"`
	Description string        `json:"description"`
	Vendor      string        `json:"vendor"`
	ProductType string        `json:"product_type"`
	Images      []Image       `json:"images"`
	Variants    []Variant     `json:"variants"`
	Status      ProductStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProductKey builds the composite key of a tracked product
func ProductKey(shopDomain string, productID int64) string {
	return fmt.Sprintf("%s_%d", shopDomain, productID)
}

// FirstImageSrc returns the source of the first image, or ""
func FirstImageSrc(images []Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].Src
}

package shopify

import (
	"shopify-improvement-core/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// ToSnapshot converts a catalog product into the snapshot tracked by the workflow
func ToSnapshot(p *goshopify.Product) domain.ProductSnapshot {
	images := make([]domain.Image, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, domain.Image{
			ID:       int64(img.Id),
			Src:      img.Src,
			Position: img.Position,
		})
	}

	variants := make([]domain.Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		variant := domain.Variant{
			ID:                int64(v.Id),
			Title:             v.Title,
			SKU:               v.Sku,
			InventoryQuantity: v.InventoryQuantity,
		}
		if v.Price != nil {
			variant.Price = v.Price.String()
		}
		variants = append(variants, variant)
	}

	return domain.ProductSnapshot{
		ProductID:   int64(p.Id),
		Title:       p.Title,
		Handle:      p.Handle,
		Description: p.BodyHTML,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Images:      images,
		Variants:    variants,
	}
}

// ToProductUpdate builds the partial product sent when an improvement is approved.
// Empty SEO fields are omitted so existing catalog values are kept.
func ToProductUpdate(productID int64, update domain.CatalogUpdate) goshopify.Product {
	return goshopify.Product{
		Id:                             uint64(productID),
		Title:                          update.Title,
		BodyHTML:                       update.Body,
		MetafieldsGlobalTitleTag:       update.SEOTitle,
		MetafieldsGlobalDescriptionTag: update.SEODescription,
	}
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType tags a product. A product may carry several.
type ProductType string

const (
	ProductTypeSingle ProductType = "SINGLE"
	ProductTypeBundle ProductType = "BUNDLE"
)

// Product is a catalog entry. Bundles are fulfilled from their components' stock.
type Product struct {
	ID        int64
	Name      string
	SKU       string
	Price     decimal.Decimal
	Stock     int
	Types     []ProductType
	DeletedAt *time.Time
}

// IsBundle reports whether the product is composed of other products.
func (p Product) IsBundle() bool {
	for _, t := range p.Types {
		if t == ProductTypeBundle {
			return true
		}
	}
	return false
}

// BundleItem binds one component to a bundle.
type BundleItem struct {
	BundleID  int64
	ProductID int64
	Quantity  int
}

// StockRequirement is the quantity of one physical product an operation needs.
type StockRequirement struct {
	ProductID int64
	Quantity  int
}

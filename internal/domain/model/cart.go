package model

import "strings"

// Cart holds a user's pending selections. One per user.
type Cart struct {
	ID     int64
	UserID int64
	Items  []CartItem
}

type CartItem struct {
	ProductID int64
	Quantity  int
}

// ProductIDs returns the distinct product ids in the cart.
func (c Cart) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(c.Items))
	ids := make([]int64, 0, len(c.Items))
	for _, item := range c.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Address is a saved shipping destination.
type Address struct {
	ID           int64
	UserID       int64
	ReceiverName string
	Phone        string
	StreetLine1  string
	StreetLine2  string
	City         string
	Province     string
	PostalCode   string
}

// Snapshot renders the address as the immutable text stored on an order.
func (a Address) Snapshot() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.StreetLine1, a.StreetLine2, a.City, a.Province, a.PostalCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

package domain

import (
	"strings"
	"time"
)

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Order struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Customer  string    `json:"customer,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CatalogSnapshot is a point-in-time copy of both collections.
type CatalogSnapshot struct {
	Products []Product
	Orders   []Order
}

// ProductFilter narrows a product listing. Zero values disable a criterion.
type ProductFilter struct {
	NameContains string
	MinPrice     *float64
	MaxPrice     *float64
}

func (f ProductFilter) Match(p Product) bool {
	if f.NameContains != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}

type OrderFilter struct {
	ProductID string
}

func (f OrderFilter) Match(o Order) bool {
	return f.ProductID == "" || o.ProductID == f.ProductID
}

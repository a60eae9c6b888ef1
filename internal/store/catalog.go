package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/storepulse/internal/domain"
)

// Catalog bundles the product and order collections.
type Catalog struct {
	Products *Collection[domain.Product]
	Orders   *Collection[domain.Order]
}

func NewCatalog(clock clockwork.Clock) *Catalog {
	return &Catalog{
		Products: NewCollection("product", clock, productID, assignProduct),
		Orders:   NewCollection("order", clock, orderID, assignOrder),
	}
}

// Snapshot returns both collections. Callers that need the two halves to be
// consistent with each other serialize mutations themselves.
func (c *Catalog) Snapshot() domain.CatalogSnapshot {
	return domain.CatalogSnapshot{
		Products: c.Products.Snapshot(),
		Orders:   c.Orders.Snapshot(),
	}
}

func productID(p domain.Product) string { return p.ID }

func orderID(o domain.Order) string { return o.ID }

func assignProduct(p domain.Product, now time.Time) domain.Product {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	return p
}

func assignOrder(o domain.Order, now time.Time) domain.Order {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	return o
}

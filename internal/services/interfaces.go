package services

import (
	"context"

	domain "github.com/dzirastore/api/internal/domain"
)

// CatalogService serves the shipping reference catalog: regions, their
// communes, pickup centers, and price tables.
type CatalogService interface {
	Regions(ctx context.Context) []domain.Region
	RegionByID(ctx context.Context, regionID int) (domain.Region, bool)
	CommunesOf(ctx context.Context, regionID int) []domain.Commune
	CentersOf(ctx context.Context, regionID int) []domain.Center
	Refresh(ctx context.Context) error
}

// PricingService resolves shipping prices and computes order money amounts.
type PricingService interface {
	ResolveShippingPrice(ctx context.Context, query ShippingPriceQuery) int64
	Quote(ctx context.Context, cmd QuoteCommand) (domain.Quote, error)
}

// ShippingPriceQuery identifies a destination inside a region's price tables.
type ShippingPriceQuery struct {
	ShippingType domain.ShippingType
	Region       domain.Region
	Commune      string
	CenterID     int
}

// QuoteCommand carries everything needed to price an order before submission.
type QuoteCommand struct {
	Items        []domain.OrderItem
	ShippingType domain.ShippingType
	RegionID     int
	Commune      string
	CenterID     int
	FreeShipping bool
	PromoApplied bool
}

// OrderService drives the order lifecycle against the external store.
type OrderService interface {
	Orders(ctx context.Context, filter OrderFilter) ([]domain.OrderView, error)
	Statistics(ctx context.Context) (domain.OrderStats, error)
	Confirm(ctx context.Context, cmd ConfirmOrderCommand) (ConfirmOrderResult, error)
	Ship(ctx context.Context, orderID string) (domain.Order, error)
	Cancel(ctx context.Context, orderID string) (domain.Order, error)
	ChangeStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	BulkChangeStatus(ctx context.Context, orderIDs []string, status domain.OrderStatus) (BatchResult, error)
	BulkDelete(ctx context.Context, orderIDs []string) (BatchResult, error)
	Documents(ctx context.Context, orderIDs []string) ([]byte, error)
}

// OrderFilter narrows the order listing. Zero value returns everything.
type OrderFilter struct {
	Bucket domain.StatusBucket
	Search string
}

// ConfirmOrderCommand carries the delivery details fixed at confirmation time.
type ConfirmOrderCommand struct {
	OrderID          string
	ShippingType     domain.ShippingType
	RegionID         int
	Commune          string
	CenterID         int
	FreeShipping     bool
	NeedsExchange    bool
	ProductToCollect string
}

// ConfirmOrderResult reports the confirmed order and, when the store produced
// one, the URL of the generated shipping document.
type ConfirmOrderResult struct {
	Order       domain.Order
	DocumentURL string
}

// CheckoutService validates and submits storefront orders.
type CheckoutService interface {
	Validate(ctx context.Context, cmd CheckoutCommand) error
	Submit(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
}

// CheckoutCommand is the raw storefront submission before validation.
type CheckoutCommand struct {
	FirstName    string
	LastName     string
	Phone        string
	Address      string
	RegionID     int
	Commune      string
	CenterID     int
	ShippingType domain.ShippingType
	Items        []domain.OrderItem
	PromoApplied bool
	FreeShipping bool
}

// CheckoutResult reports the submitted order.
type CheckoutResult struct {
	Order domain.Order
	Quote domain.Quote
}

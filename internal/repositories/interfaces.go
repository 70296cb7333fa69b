package repositories

import (
	"context"
	"time"

	domain "github.com/dzirastore/api/internal/domain"
)

// StoreError is implemented by errors returned from the external order store
// so services can translate transport failures without importing the client.
type StoreError interface {
	error
	IsNotFound() bool
	IsUnavailable() bool
}

// ShippingStore fetches the shipping reference catalog from the external
// store. The catalog is immutable for the lifetime of a session; callers are
// expected to cache it.
type ShippingStore interface {
	FetchCatalog(ctx context.Context) ([]domain.Region, error)
}

// OrderStore is the REST boundary to the external order store. Persistence
// lives entirely on the other side; every mutation here is a network round
// trip.
type OrderStore interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	// UpdateOrder persists the full order payload. On a confirmation update
	// the store responds with the URL of the generated shipping document
	// (bordereau); the URL is empty for other updates.
	UpdateOrder(ctx context.Context, order domain.Order) (documentURL string, err error)
	ChangeStatus(ctx context.Context, orderIDs []string, status domain.OrderStatus) error
	DeleteOrder(ctx context.Context, orderID string) error
	// DownloadDocuments returns the carrier document bundle (spreadsheet) for
	// the given order ids as raw bytes.
	DownloadDocuments(ctx context.Context, orderIDs []string) ([]byte, error)
}

// DependencyCheck describes a dependency probe executed during readiness
// checks.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

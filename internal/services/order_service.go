package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/dzirastore/api/internal/domain"
	"github.com/dzirastore/api/internal/repositories"
)

const (
	orderEventConfirmed     = "order.confirmed"
	orderEventShipped       = "order.shipped"
	orderEventCanceled      = "order.canceled"
	orderEventStatusChanged = "order.status.changed"
	orderEventBulkFinished  = "order.bulk.finished"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located in the store.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates the requested transition is not allowed
	// from the order's current status.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderStoreUnavailable indicates the external store could not be
	// reached.
	ErrOrderStoreUnavailable = errors.New("order: store unavailable")
)

// cancellableStatuses lists the statuses an order may be canceled from. Once
// handed to the carrier the cancellation happens on the carrier side, not
// here.
var cancellableStatuses = []domain.OrderStatus{
	domain.StatusPending,
	domain.StatusConfirmed,
}

// OrderServiceDeps bundles collaborators required to construct the order
// service.
type OrderServiceDeps struct {
	Store           repositories.OrderStore
	Catalog         CatalogService
	Pricing         PricingService
	Clock           func() time.Time
	TrackingID      func() string
	BulkConcurrency int
	BulkItemTimeout time.Duration
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	store      repositories.OrderStore
	catalog    CatalogService
	pricing    PricingService
	clock      func() time.Time
	trackingID func() string
	processor  *batchProcessor
	guard      *inflightGuard
	logger     func(context.Context, string, map[string]any)

	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

// NewOrderService wires dependencies into a concrete OrderService
// implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Store == nil {
		return nil, errors.New("order service: order store is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog service is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	trackingID := deps.TrackingID
	if trackingID == nil {
		trackingID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		store:      deps.Store,
		catalog:    deps.Catalog,
		pricing:    deps.Pricing,
		clock:      func() time.Time { return clock().UTC() },
		trackingID: trackingID,
		processor:  newBatchProcessor(deps.BulkConcurrency, deps.BulkItemTimeout),
		guard:      newInflightGuard(),
		logger:     logger,
	}, nil
}

// lockOrder serialises mutations per order id. Locks are keyed so two
// different orders never contend with each other; entries are refcounted and
// dropped once the last holder releases, keeping the table bounded by the
// number of in-flight mutations.
func (s *orderService) lockOrder(orderID string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*orderLock)
	}
	entry, ok := s.locks[orderID]
	if !ok {
		entry = &orderLock{}
		s.locks[orderID] = entry
	}
	entry.refs++
	s.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		s.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(s.locks, orderID)
		}
		s.mu.Unlock()
	}
}

func (s *orderService) Orders(ctx context.Context, filter OrderFilter) ([]domain.OrderView, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, translateStoreError(err)
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	views := make([]domain.OrderView, 0, len(orders))
	for _, order := range orders {
		if filter.Bucket != "" && domain.BucketOf(order.Status) != filter.Bucket {
			continue
		}
		if search != "" && !matchesSearch(order, search) {
			continue
		}
		views = append(views, domain.OrderView{
			Order:  order,
			Bucket: domain.BucketOf(order.Status),
			Badge:  domain.BadgeOf(order.Status, ""),
		})
	}
	return views, nil
}

func matchesSearch(order domain.Order, needle string) bool {
	haystacks := []string{
		order.ID,
		order.TrackingID,
		order.Customer.Phone,
		order.Customer.FirstName + " " + order.Customer.LastName,
	}
	for _, value := range haystacks {
		if strings.Contains(strings.ToLower(value), needle) {
			return true
		}
	}
	return false
}

func (s *orderService) Statistics(ctx context.Context) (domain.OrderStats, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return domain.OrderStats{}, translateStoreError(err)
	}
	return domain.Aggregate(orders), nil
}

// Confirm freezes the delivery details of a pending order, reprices it, and
// pushes the update to the store. The store answers with the generated
// shipping document URL.
func (s *orderService) Confirm(ctx context.Context, cmd ConfirmOrderCommand) (ConfirmOrderResult, error) {
	cmd.OrderID = strings.TrimSpace(cmd.OrderID)
	if cmd.OrderID == "" {
		return ConfirmOrderResult{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	unlock := s.lockOrder(cmd.OrderID)
	defer unlock()

	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return ConfirmOrderResult{}, err
	}
	if order.Status != domain.StatusPending {
		return ConfirmOrderResult{}, fmt.Errorf("%w: cannot confirm order in status %q", ErrOrderInvalidState, order.Status)
	}

	region, ok := s.catalog.RegionByID(ctx, cmd.RegionID)
	if !ok {
		return ConfirmOrderResult{}, fmt.Errorf("%w: unknown region %d", ErrOrderInvalidInput, cmd.RegionID)
	}
	switch cmd.ShippingType {
	case domain.ShippingTypeDesk:
		if cmd.CenterID == 0 {
			return ConfirmOrderResult{}, fmt.Errorf("%w: desk delivery requires a pickup center", ErrOrderInvalidInput)
		}
		if !regionHasCenter(region, cmd.CenterID) {
			return ConfirmOrderResult{}, fmt.Errorf("%w: center %d does not belong to region %d", ErrOrderInvalidInput, cmd.CenterID, cmd.RegionID)
		}
	case domain.ShippingTypeHome:
		if strings.TrimSpace(cmd.Commune) == "" {
			return ConfirmOrderResult{}, fmt.Errorf("%w: home delivery requires a commune", ErrOrderInvalidInput)
		}
	default:
		return ConfirmOrderResult{}, fmt.Errorf("%w: unknown shipping type %q", ErrOrderInvalidInput, cmd.ShippingType)
	}
	if cmd.NeedsExchange && strings.TrimSpace(cmd.ProductToCollect) == "" {
		return ConfirmOrderResult{}, fmt.Errorf("%w: exchange requires the product to collect", ErrOrderInvalidInput)
	}

	shipping := s.pricing.ResolveShippingPrice(ctx, ShippingPriceQuery{
		ShippingType: cmd.ShippingType,
		Region:       region,
		Commune:      cmd.Commune,
		CenterID:     cmd.CenterID,
	})
	if cmd.FreeShipping {
		shipping = 0
	}

	order.ShippingType = cmd.ShippingType
	order.RegionID = region.ID
	order.RegionName = region.Name
	order.Commune = strings.TrimSpace(cmd.Commune)
	order.CenterID = cmd.CenterID
	if cmd.ShippingType == domain.ShippingTypeHome {
		order.CenterID = 0
	}
	order.FreeShipping = cmd.FreeShipping
	order.NeedsExchange = cmd.NeedsExchange
	order.ProductToCollect = strings.TrimSpace(cmd.ProductToCollect)
	if !cmd.NeedsExchange {
		order.ProductToCollect = ""
	}
	order.Subtotal = domain.Subtotal(order.Items)
	order.Discount = domain.PromoDiscount(order.Subtotal, order.PromoApplied)
	order.ShippingPrice = shipping
	order.Total = order.Subtotal - order.Discount + shipping
	order.Status = domain.StatusConfirmed
	order.UpdatedAt = s.clock()

	documentURL, err := s.store.UpdateOrder(ctx, order)
	if err != nil {
		return ConfirmOrderResult{}, translateStoreError(err)
	}

	s.logger(ctx, orderEventConfirmed, map[string]any{
		"order_id":      order.ID,
		"region_id":     order.RegionID,
		"shipping_type": string(order.ShippingType),
		"total":         order.Total,
	})
	return ConfirmOrderResult{Order: order, DocumentURL: documentURL}, nil
}

func regionHasCenter(region domain.Region, centerID int) bool {
	for _, center := range region.Centers {
		if center.ID == centerID {
			return true
		}
	}
	return false
}

// Ship hands a confirmed order to the carrier. The call is idempotent: an
// order already shipped is returned unchanged, and an existing tracking id
// is never regenerated.
func (s *orderService) Ship(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == domain.StatusShipped {
		return order, nil
	}
	if order.Status != domain.StatusConfirmed {
		return domain.Order{}, fmt.Errorf("%w: cannot ship order in status %q", ErrOrderInvalidState, order.Status)
	}

	if order.TrackingID == "" {
		order.TrackingID = s.trackingID()
	}
	order.Status = domain.StatusShipped
	order.UpdatedAt = s.clock()

	if _, err := s.store.UpdateOrder(ctx, order); err != nil {
		return domain.Order{}, translateStoreError(err)
	}
	s.logger(ctx, orderEventShipped, map[string]any{
		"order_id":    order.ID,
		"tracking_id": order.TrackingID,
	})
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	cancellable := false
	for _, status := range cancellableStatuses {
		if order.Status == status {
			cancellable = true
			break
		}
	}
	if !cancellable {
		return domain.Order{}, fmt.Errorf("%w: cannot cancel order in status %q", ErrOrderInvalidState, order.Status)
	}

	if err := s.store.ChangeStatus(ctx, []string{order.ID}, domain.StatusCanceled); err != nil {
		return domain.Order{}, translateStoreError(err)
	}
	order.Status = domain.StatusCanceled
	order.UpdatedAt = s.clock()

	s.logger(ctx, orderEventCanceled, map[string]any{"order_id": order.ID})
	return order, nil
}

// ChangeStatus moves a single order to an arbitrary status from the known
// vocabulary. Lifecycle shortcuts (Confirm, Ship, Cancel) carry extra
// validation; this is the escape hatch for carrier-side updates.
func (s *orderService) ChangeStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !domain.KnownStatus(status) {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
	}
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.store.ChangeStatus(ctx, []string{order.ID}, status); err != nil {
		return domain.Order{}, translateStoreError(err)
	}
	order.Status = status
	order.UpdatedAt = s.clock()

	s.logger(ctx, orderEventStatusChanged, map[string]any{
		"order_id": order.ID,
		"status":   string(status),
	})
	return order, nil
}

// BulkChangeStatus applies a status change to many orders with per-item
// isolation: one failing order never aborts the others. Only one bulk run
// may be in flight at a time.
func (s *orderService) BulkChangeStatus(ctx context.Context, orderIDs []string, status domain.OrderStatus) (BatchResult, error) {
	ids, err := normaliseBatchIDs(orderIDs)
	if err != nil {
		return BatchResult{}, err
	}
	if !domain.KnownStatus(status) {
		return BatchResult{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
	}
	if err := s.guard.acquire(); err != nil {
		return BatchResult{}, err
	}
	defer s.guard.release()

	result := s.processor.run(ctx, ids, func(itemCtx context.Context, id string) error {
		unlock := s.lockOrder(id)
		defer unlock()
		return s.store.ChangeStatus(itemCtx, []string{id}, status)
	})
	s.logger(ctx, orderEventBulkFinished, map[string]any{
		"operation": "change_status",
		"status":    string(status),
		"requested": len(ids),
		"succeeded": result.SuccessCount,
		"failed":    len(result.Failures),
	})
	return result, nil
}

func (s *orderService) BulkDelete(ctx context.Context, orderIDs []string) (BatchResult, error) {
	ids, err := normaliseBatchIDs(orderIDs)
	if err != nil {
		return BatchResult{}, err
	}
	if err := s.guard.acquire(); err != nil {
		return BatchResult{}, err
	}
	defer s.guard.release()

	result := s.processor.run(ctx, ids, func(itemCtx context.Context, id string) error {
		unlock := s.lockOrder(id)
		defer unlock()
		return s.store.DeleteOrder(itemCtx, id)
	})
	s.logger(ctx, orderEventBulkFinished, map[string]any{
		"operation": "delete",
		"requested": len(ids),
		"succeeded": result.SuccessCount,
		"failed":    len(result.Failures),
	})
	return result, nil
}

func (s *orderService) Documents(ctx context.Context, orderIDs []string) ([]byte, error) {
	ids, err := normaliseBatchIDs(orderIDs)
	if err != nil {
		return nil, err
	}
	bundle, err := s.store.DownloadDocuments(ctx, ids)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return bundle, nil
}

func (s *orderService) findOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return domain.Order{}, translateStoreError(err)
	}
	for _, order := range orders {
		if order.ID == orderID {
			return order, nil
		}
	}
	return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
}

func normaliseBatchIDs(orderIDs []string) ([]string, error) {
	ids := make([]string, 0, len(orderIDs))
	seen := make(map[string]bool, len(orderIDs))
	for _, id := range orderIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one order id is required", ErrOrderInvalidInput)
	}
	return ids, nil
}

func translateStoreError(err error) error {
	var storeErr repositories.StoreError
	if errors.As(err, &storeErr) {
		if storeErr.IsNotFound() {
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		}
		if storeErr.IsUnavailable() {
			return fmt.Errorf("%w: %v", ErrOrderStoreUnavailable, err)
		}
	}
	return err
}

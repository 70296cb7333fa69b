package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/dzirastore/api/internal/domain"
	"github.com/dzirastore/api/internal/platform/httpx"
	"github.com/dzirastore/api/internal/services"
)

const (
	maxOrderActionBodySize = 16 * 1024
	maxBulkBodySize        = 256 * 1024
)

// OrderHandlers exposes the back-office order management endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Get("/statistics", h.statistics)
	r.Post("/{orderID}:confirm", h.confirmOrder)
	r.Post("/{orderID}:ship", h.shipOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.Post("/{orderID}:status", h.changeStatus)
	r.Post("/bulk:status", h.bulkChangeStatus)
	r.Post("/bulk:delete", h.bulkDelete)
	r.Post("/documents", h.documents)
}

type confirmOrderRequest struct {
	ShippingType     string `json:"shipping_type"`
	RegionID         int    `json:"region_id"`
	Commune          string `json:"commune"`
	CenterID         int    `json:"center_id"`
	FreeShipping     bool   `json:"is_free_shipping"`
	NeedsExchange    bool   `json:"needs_exchange"`
	ProductToCollect string `json:"product_to_collect"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type bulkStatusRequest struct {
	Orders []string `json:"orders"`
	Status string   `json:"status"`
}

type bulkDeleteRequest struct {
	Orders []string `json:"orders"`
}

type documentsRequest struct {
	Orders []string `json:"orders"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	filter := services.OrderFilter{
		Search: strings.TrimSpace(query.Get("search")),
	}
	if raw := strings.TrimSpace(query.Get("bucket")); raw != "" {
		filter.Bucket = domain.StatusBucket(strings.ToLower(raw))
	}

	views, err := h.orders.Orders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(views))
	for _, view := range views {
		items = append(items, buildOrderPayload(view))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{Items: items})
}

func (h *OrderHandlers) statistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	stats, err := h.orders.Statistics(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	counts := make(map[string]int, len(stats.Counts))
	for bucket, count := range stats.Counts {
		counts[string(bucket)] = count
	}
	writeJSONResponse(w, http.StatusOK, statisticsResponse{
		Total:        stats.Total,
		Counts:       counts,
		TotalRevenue: stats.TotalRevenue,
	})
}

func (h *OrderHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req confirmOrderRequest
	if !decodeBody(ctx, w, r, maxOrderActionBodySize, &req) {
		return
	}

	result, err := h.orders.Confirm(ctx, services.ConfirmOrderCommand{
		OrderID:          orderID,
		ShippingType:     domain.ShippingType(strings.ToLower(strings.TrimSpace(req.ShippingType))),
		RegionID:         req.RegionID,
		Commune:          req.Commune,
		CenterID:         req.CenterID,
		FreeShipping:     req.FreeShipping,
		NeedsExchange:    req.NeedsExchange,
		ProductToCollect: req.ProductToCollect,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, confirmOrderResponse{
		Order:       buildOrderPayload(viewOf(result.Order)),
		DocumentURL: result.DocumentURL,
	})
}

func (h *OrderHandlers) shipOrder(w http.ResponseWriter, r *http.Request) {
	h.singleOrderAction(w, r, func(ctx context.Context, orderID string) (domain.Order, error) {
		return h.orders.Ship(ctx, orderID)
	})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.singleOrderAction(w, r, func(ctx context.Context, orderID string) (domain.Order, error) {
		return h.orders.Cancel(ctx, orderID)
	})
}

func (h *OrderHandlers) singleOrderAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string) (domain.Order, error)) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := action(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(viewOf(order))})
}

func (h *OrderHandlers) changeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req changeStatusRequest
	if !decodeBody(ctx, w, r, maxOrderActionBodySize, &req) {
		return
	}

	order, err := h.orders.ChangeStatus(ctx, orderID, domain.OrderStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(viewOf(order))})
}

func (h *OrderHandlers) bulkChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req bulkStatusRequest
	if !decodeBody(ctx, w, r, maxBulkBodySize, &req) {
		return
	}

	result, err := h.orders.BulkChangeStatus(ctx, req.Orders, domain.OrderStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

func (h *OrderHandlers) bulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req bulkDeleteRequest
	if !decodeBody(ctx, w, r, maxBulkBodySize, &req) {
		return
	}

	result, err := h.orders.BulkDelete(ctx, req.Orders)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

func (h *OrderHandlers) documents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req documentsRequest
	if !decodeBody(ctx, w, r, maxBulkBodySize, &req) {
		return
	}

	bundle, err := h.orders.Documents(ctx, req.Orders)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bordereaus.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bundle)
}

func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, out any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

type orderListResponse struct {
	Items []orderPayload `json:"items"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type confirmOrderResponse struct {
	Order       orderPayload `json:"order"`
	DocumentURL string       `json:"document_url,omitempty"`
}

type statisticsResponse struct {
	Total        int            `json:"total"`
	Counts       map[string]int `json:"counts"`
	TotalRevenue int64          `json:"total_revenue"`
}

type orderItemPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	Color    string `json:"color,omitempty"`
	Size     string `json:"size,omitempty"`
	Image    string `json:"product_img,omitempty"`
}

type badgePayload struct {
	Label   string `json:"label"`
	Color   string `json:"color"`
	Tooltip string `json:"tooltip"`
}

type orderPayload struct {
	ID                string             `json:"id"`
	CustomerFirstName string             `json:"customer_first_name"`
	CustomerLastName  string             `json:"customer_last_name"`
	CustomerPhone     string             `json:"customer_phone"`
	CustomerAddress   string             `json:"customer_address,omitempty"`
	RegionID          int                `json:"region_id"`
	Region            string             `json:"region,omitempty"`
	Commune           string             `json:"commune,omitempty"`
	CenterID          int                `json:"center_id,omitempty"`
	ShippingType      string             `json:"shipping_type"`
	Status            string             `json:"status"`
	Bucket            string             `json:"bucket"`
	Badge             badgePayload       `json:"badge"`
	Items             []orderItemPayload `json:"items"`
	FreeShipping      bool               `json:"is_free_shipping"`
	PromoApplied      bool               `json:"promo_applied"`
	NeedsExchange     bool               `json:"needs_exchange"`
	ProductToCollect  string             `json:"product_to_collect,omitempty"`
	TrackingID        string             `json:"tracking_id,omitempty"`
	Subtotal          int64              `json:"subtotal"`
	Discount          int64              `json:"discount"`
	ShippingPrice     int64              `json:"shipping_price"`
	Total             int64              `json:"total"`
	CreatedAt         string             `json:"created_at,omitempty"`
	UpdatedAt         string             `json:"updated_at,omitempty"`
}

func viewOf(order domain.Order) domain.OrderView {
	return domain.OrderView{
		Order:  order,
		Bucket: domain.BucketOf(order.Status),
		Badge:  domain.BadgeOf(order.Status, ""),
	}
}

func buildOrderPayload(view domain.OrderView) orderPayload {
	items := make([]orderItemPayload, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, orderItemPayload{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.UnitPrice,
			Color:    item.Color,
			Size:     item.Size,
			Image:    item.Image,
		})
	}

	return orderPayload{
		ID:                view.ID,
		CustomerFirstName: view.Customer.FirstName,
		CustomerLastName:  view.Customer.LastName,
		CustomerPhone:     view.Customer.Phone,
		CustomerAddress:   view.Customer.Address,
		RegionID:          view.RegionID,
		Region:            view.RegionName,
		Commune:           view.Commune,
		CenterID:          view.CenterID,
		ShippingType:      string(view.ShippingType),
		Status:            string(view.Status),
		Bucket:            string(view.Bucket),
		Badge: badgePayload{
			Label:   view.Badge.Label,
			Color:   string(view.Badge.Color),
			Tooltip: view.Badge.Tooltip,
		},
		Items:            items,
		FreeShipping:     view.FreeShipping,
		PromoApplied:     view.PromoApplied,
		NeedsExchange:    view.NeedsExchange,
		ProductToCollect: view.ProductToCollect,
		TrackingID:       view.TrackingID,
		Subtotal:         view.Subtotal,
		Discount:         view.Discount,
		ShippingPrice:    view.ShippingPrice,
		Total:            view.Total,
		CreatedAt:        formatTime(view.CreatedAt),
		UpdatedAt:        formatTime(view.UpdatedAt),
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrBatchInFlight):
		httpx.WriteError(ctx, w, httpx.NewError("bulk_in_flight", "a bulk operation is already running", http.StatusConflict))
	case errors.Is(err, services.ErrOrderStoreUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_store_unavailable", "order store unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

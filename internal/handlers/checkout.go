package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/dzirastore/api/internal/domain"
	"github.com/dzirastore/api/internal/platform/httpx"
	"github.com/dzirastore/api/internal/services"
)

const (
	maxCheckoutBodySize      = 128 * 1024
	defaultCheckoutRateLimit = 10
	checkoutRateWindow       = time.Minute
)

// CheckoutHandlers exposes the storefront checkout endpoints.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	limiter  rateLimiter
}

// NewCheckoutHandlers constructs a new CheckoutHandlers instance. Submissions
// are rate limited per client address to contain abusive form bots.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkout: checkout,
		limiter:  newSimpleRateLimiter(defaultCheckoutRateLimit, checkoutRateWindow, time.Now),
	}
}

// Routes registers the /checkout endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate", h.validate)
	r.Post("/", h.submit)
}

type checkoutRequest struct {
	FirstName    string             `json:"customer_first_name"`
	LastName     string             `json:"customer_last_name"`
	Phone        string             `json:"customer_phone"`
	Address      string             `json:"customer_address"`
	RegionID     int                `json:"region_id"`
	Commune      string             `json:"commune"`
	CenterID     int                `json:"center_id"`
	ShippingType string             `json:"shipping_type"`
	FreeShipping bool               `json:"is_free_shipping"`
	PromoApplied bool               `json:"promo_applied"`
	Items        []orderItemPayload `json:"items"`
}

type checkoutResponse struct {
	Order orderPayload  `json:"order"`
	Quote quoteResponse `json:"quote"`
}

func (h *CheckoutHandlers) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req checkoutRequest
	if !decodeBody(ctx, w, r, maxCheckoutBodySize, &req) {
		return
	}

	if err := h.checkout.Validate(ctx, buildCheckoutCommand(req)); err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"valid": true})
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(clientAddress(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts, retry later", http.StatusTooManyRequests))
		return
	}

	var req checkoutRequest
	if !decodeBody(ctx, w, r, maxCheckoutBodySize, &req) {
		return
	}

	result, err := h.checkout.Submit(ctx, buildCheckoutCommand(req))
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		Order: buildOrderPayload(viewOf(result.Order)),
		Quote: quoteResponse{
			Subtotal:      result.Quote.Subtotal,
			Discount:      result.Quote.Discount,
			ShippingPrice: result.Quote.ShippingPrice,
			Total:         result.Quote.Total,
		},
	})
}

func buildCheckoutCommand(req checkoutRequest) services.CheckoutCommand {
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ID:        item.ID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Color:     item.Color,
			Size:      item.Size,
			Image:     item.Image,
		})
	}
	return services.CheckoutCommand{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Address:      req.Address,
		RegionID:     req.RegionID,
		Commune:      req.Commune,
		CenterID:     req.CenterID,
		ShippingType: domain.ShippingType(strings.ToLower(strings.TrimSpace(req.ShippingType))),
		FreeShipping: req.FreeShipping,
		PromoApplied: req.PromoApplied,
		Items:        items,
	}
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var verr *services.CheckoutValidationError
	if errors.As(err, &verr) {
		fields := make([]map[string]string, 0, len(verr.Fields))
		for _, field := range verr.Fields {
			fields = append(fields, map[string]string{
				"field":   field.Field,
				"message": field.Message,
			})
		}
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "checkout validation failed", http.StatusBadRequest).
			WithDetails(map[string]any{"fields": fields}))
		return
	}

	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "order could not be submitted, retry later", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

func clientAddress(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

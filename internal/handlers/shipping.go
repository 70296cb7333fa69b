package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/dzirastore/api/internal/domain"
	"github.com/dzirastore/api/internal/platform/httpx"
	"github.com/dzirastore/api/internal/services"
)

const maxQuoteBodySize = 64 * 1024

// ShippingHandlers exposes the shipping catalog and quoting endpoints.
type ShippingHandlers struct {
	catalog services.CatalogService
	pricing services.PricingService
}

// NewShippingHandlers constructs a new ShippingHandlers instance.
func NewShippingHandlers(catalog services.CatalogService, pricing services.PricingService) *ShippingHandlers {
	return &ShippingHandlers{catalog: catalog, pricing: pricing}
}

// Routes registers the /shipping endpoints.
func (h *ShippingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/regions", h.listRegions)
	r.Get("/regions/{regionID}/communes", h.listCommunes)
	r.Get("/regions/{regionID}/centers", h.listCenters)
	r.Post("/quote", h.quote)
}

type regionPayload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type communePayload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type centerPayload struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	CommuneID int    `json:"commune_id"`
}

type quoteRequest struct {
	ShippingType string             `json:"shipping_type"`
	RegionID     int                `json:"region_id"`
	Commune      string             `json:"commune"`
	CenterID     int                `json:"center_id"`
	FreeShipping bool               `json:"is_free_shipping"`
	PromoApplied bool               `json:"promo_applied"`
	Items        []orderItemPayload `json:"items"`
}

type quoteResponse struct {
	Subtotal      int64 `json:"subtotal"`
	Discount      int64 `json:"discount"`
	ShippingPrice int64 `json:"shipping_price"`
	Total         int64 `json:"total"`
}

func (h *ShippingHandlers) listRegions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	regions := h.catalog.Regions(ctx)
	payload := make([]regionPayload, 0, len(regions))
	for _, region := range regions {
		payload = append(payload, regionPayload{ID: region.ID, Name: region.Name})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": payload})
}

func (h *ShippingHandlers) listCommunes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	regionID, ok := parseRegionID(ctx, w, r)
	if !ok {
		return
	}
	if _, found := h.catalog.RegionByID(ctx, regionID); !found {
		httpx.WriteError(ctx, w, httpx.NewError("region_not_found", "region not found", http.StatusNotFound))
		return
	}

	communes := h.catalog.CommunesOf(ctx, regionID)
	payload := make([]communePayload, 0, len(communes))
	for _, commune := range communes {
		payload = append(payload, communePayload{ID: commune.ID, Name: commune.Name})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": payload})
}

func (h *ShippingHandlers) listCenters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	regionID, ok := parseRegionID(ctx, w, r)
	if !ok {
		return
	}
	if _, found := h.catalog.RegionByID(ctx, regionID); !found {
		httpx.WriteError(ctx, w, httpx.NewError("region_not_found", "region not found", http.StatusNotFound))
		return
	}

	centers := h.catalog.CentersOf(ctx, regionID)
	payload := make([]centerPayload, 0, len(centers))
	for _, center := range centers {
		payload = append(payload, centerPayload{
			ID:        center.ID,
			Name:      center.Name,
			Address:   center.Address,
			CommuneID: center.CommuneID,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": payload})
}

func (h *ShippingHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_service_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req quoteRequest
	if !decodeBody(ctx, w, r, maxQuoteBodySize, &req) {
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ID:        item.ID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}

	quote, err := h.pricing.Quote(ctx, services.QuoteCommand{
		Items:        items,
		ShippingType: domain.ShippingType(strings.ToLower(strings.TrimSpace(req.ShippingType))),
		RegionID:     req.RegionID,
		Commune:      req.Commune,
		CenterID:     req.CenterID,
		FreeShipping: req.FreeShipping,
		PromoApplied: req.PromoApplied,
	})
	if err != nil {
		if errors.Is(err, services.ErrPricingInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, quoteResponse{
		Subtotal:      quote.Subtotal,
		Discount:      quote.Discount,
		ShippingPrice: quote.ShippingPrice,
		Total:         quote.Total,
	})
}

func parseRegionID(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "regionID"))
	regionID, err := strconv.Atoi(raw)
	if err != nil || regionID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "region id must be a positive integer", http.StatusBadRequest))
		return 0, false
	}
	return regionID, true
}

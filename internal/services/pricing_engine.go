package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/dzirastore/api/internal/domain"
)

// ErrPricingInvalidInput signals bad request data such as an unknown region
// or an empty cart.
var ErrPricingInvalidInput = errors.New("pricing: invalid input")

// PricingEngineDeps bundles collaborators required to construct the pricing
// engine.
type PricingEngineDeps struct {
	Catalog CatalogService
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type pricingEngine struct {
	catalog CatalogService
	logger  func(context.Context, string, map[string]any)
}

// NewPricingEngine wires dependencies into a concrete PricingService
// implementation.
func NewPricingEngine(deps PricingEngineDeps) (PricingService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing engine: catalog service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &pricingEngine{catalog: deps.Catalog, logger: logger}, nil
}

// ResolveShippingPrice looks up the delivery price for a destination. Home
// delivery is keyed by commune name, desk delivery by the commune id of the
// selected center. A destination absent from the price table resolves to 0
// so checkout stays usable while the catalog is incomplete; the gap is
// logged for reconciliation.
func (e *pricingEngine) ResolveShippingPrice(ctx context.Context, query ShippingPriceQuery) int64 {
	switch query.ShippingType {
	case domain.ShippingTypeDesk:
		if price, ok := deskPrice(query.Region, query.CenterID); ok {
			return price
		}
	default:
		if price, ok := homePrice(query.Region, query.Commune); ok {
			return price
		}
	}
	e.logger(ctx, "pricing.price_fallback_zero", map[string]any{
		"shipping_type": string(query.ShippingType),
		"region_id":     query.Region.ID,
		"commune":       query.Commune,
		"center_id":     query.CenterID,
	})
	return 0
}

// Quote prices a cart: subtotal over the items, promo discount, and the
// resolved shipping price. Free shipping nullifies the shipping component
// but never touches the subtotal.
func (e *pricingEngine) Quote(ctx context.Context, cmd QuoteCommand) (domain.Quote, error) {
	if len(cmd.Items) == 0 {
		return domain.Quote{}, fmt.Errorf("%w: at least one item is required", ErrPricingInvalidInput)
	}
	region, ok := e.catalog.RegionByID(ctx, cmd.RegionID)
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: unknown region %d", ErrPricingInvalidInput, cmd.RegionID)
	}

	shipping := e.ResolveShippingPrice(ctx, ShippingPriceQuery{
		ShippingType: cmd.ShippingType,
		Region:       region,
		Commune:      cmd.Commune,
		CenterID:     cmd.CenterID,
	})
	if cmd.FreeShipping {
		shipping = 0
	}

	subtotal := domain.Subtotal(cmd.Items)
	discount := domain.PromoDiscount(subtotal, cmd.PromoApplied)
	return domain.Quote{
		Subtotal:      subtotal,
		Discount:      discount,
		ShippingPrice: shipping,
		Total:         (subtotal - discount) + shipping,
	}, nil
}

func homePrice(region domain.Region, commune string) (int64, bool) {
	commune = strings.TrimSpace(commune)
	if commune == "" {
		return 0, false
	}
	for _, entry := range region.Shipping.Home {
		if strings.EqualFold(entry.Commune, commune) {
			return entry.Price, true
		}
	}
	return 0, false
}

// deskPrice resolves a center id to its commune id, then that commune id to
// a desk price. Either hop can miss.
func deskPrice(region domain.Region, centerID int) (int64, bool) {
	communeID, found := 0, false
	for _, center := range region.Centers {
		if center.ID == centerID {
			communeID, found = center.CommuneID, true
			break
		}
	}
	if !found {
		return 0, false
	}
	for _, entry := range region.Shipping.Desk {
		if entry.CommuneID == communeID {
			return entry.Price, true
		}
	}
	return 0, false
}

package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	domain "github.com/dzirastore/api/internal/domain"
	"github.com/dzirastore/api/internal/repositories"
)

const (
	checkoutEventSubmitted    = "checkout.submitted"
	checkoutEventSubmitFailed = "checkout.submit_failed"

	minAddressLength = 8
	maxNameLength    = 64
)

var (
	// ErrCheckoutInvalidInput indicates the submission failed field
	// validation; unwrap to *CheckoutValidationError for the details.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates the order store rejected or could not
	// receive the submission.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

// Algerian mobile numbers: ten digits, leading 05, 06, or 07.
var phonePattern = regexp.MustCompile(`^0[567][0-9]{8}$`)

var namePattern = regexp.MustCompile(`^[\p{L}][\p{L} '-]*$`)

// FieldError attaches a message to the form field that caused it.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// CheckoutValidationError collects every failing field so the storefront can
// annotate the whole form in one round trip.
type CheckoutValidationError struct {
	Fields []FieldError
}

func (e *CheckoutValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		names = append(names, field.Field)
	}
	return fmt.Sprintf("checkout: invalid input: %s", strings.Join(names, ", "))
}

func (e *CheckoutValidationError) Unwrap() error { return ErrCheckoutInvalidInput }

func (e *CheckoutValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// CheckoutServiceDeps bundles collaborators required to construct the
// checkout service.
type CheckoutServiceDeps struct {
	Store      repositories.OrderStore
	Catalog    CatalogService
	Pricing    PricingService
	Promotions bool
	Clock      func() time.Time
	OrderID    func() string
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	store      repositories.OrderStore
	catalog    CatalogService
	pricing    PricingService
	promotions bool
	clock      func() time.Time
	orderID    func() string
	logger     func(context.Context, string, map[string]any)
}

// NewCheckoutService wires dependencies into a concrete CheckoutService
// implementation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Store == nil {
		return nil, errors.New("checkout service: order store is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("checkout service: catalog service is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("checkout service: pricing service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	orderID := deps.OrderID
	if orderID == nil {
		orderID = func() string { return uuid.NewString() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		store:      deps.Store,
		catalog:    deps.Catalog,
		pricing:    deps.Pricing,
		promotions: deps.Promotions,
		clock:      func() time.Time { return clock().UTC() },
		orderID:    orderID,
		logger:     logger,
	}, nil
}

// Validate runs the full field validation without submitting anything. The
// storefront calls it on form blur so the customer sees problems before the
// final submit.
func (s *checkoutService) Validate(ctx context.Context, cmd CheckoutCommand) error {
	return s.validate(ctx, cmd)
}

// Submit validates the command, prices the cart, and creates the order in
// the store. The order starts in the pending status; totals are recomputed
// server side and never trusted from the client.
func (s *checkoutService) Submit(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	if err := s.validate(ctx, cmd); err != nil {
		return CheckoutResult{}, err
	}

	promoApplied := cmd.PromoApplied && s.promotions
	quote, err := s.pricing.Quote(ctx, QuoteCommand{
		Items:        cmd.Items,
		ShippingType: cmd.ShippingType,
		RegionID:     cmd.RegionID,
		Commune:      cmd.Commune,
		CenterID:     cmd.CenterID,
		FreeShipping: cmd.FreeShipping,
		PromoApplied: promoApplied,
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}

	region, _ := s.catalog.RegionByID(ctx, cmd.RegionID)
	now := s.clock()
	order := domain.Order{
		ID: s.orderID(),
		Customer: domain.Customer{
			FirstName: strings.TrimSpace(cmd.FirstName),
			LastName:  strings.TrimSpace(cmd.LastName),
			Phone:     strings.TrimSpace(cmd.Phone),
			Address:   strings.TrimSpace(cmd.Address),
		},
		RegionID:      cmd.RegionID,
		RegionName:    region.Name,
		Commune:       strings.TrimSpace(cmd.Commune),
		CenterID:      cmd.CenterID,
		ShippingType:  cmd.ShippingType,
		Status:        domain.StatusPending,
		Items:         cmd.Items,
		FreeShipping:  cmd.FreeShipping,
		PromoApplied:  promoApplied,
		Subtotal:      quote.Subtotal,
		Discount:      quote.Discount,
		ShippingPrice: quote.ShippingPrice,
		Total:         quote.Total,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if cmd.ShippingType == domain.ShippingTypeHome {
		order.CenterID = 0
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		s.logger(ctx, checkoutEventSubmitFailed, map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}

	s.logger(ctx, checkoutEventSubmitted, map[string]any{
		"order_id":      order.ID,
		"region_id":     order.RegionID,
		"shipping_type": string(order.ShippingType),
		"total":         order.Total,
	})
	return CheckoutResult{Order: order, Quote: quote}, nil
}

func (s *checkoutService) validate(ctx context.Context, cmd CheckoutCommand) error {
	verr := &CheckoutValidationError{}

	validateName(verr, "first_name", cmd.FirstName)
	validateName(verr, "last_name", cmd.LastName)

	phone := strings.TrimSpace(cmd.Phone)
	if phone == "" {
		verr.add("phone", "phone is required")
	} else if !phonePattern.MatchString(phone) {
		verr.add("phone", "phone must be a valid mobile number (05, 06, or 07)")
	}

	switch cmd.ShippingType {
	case domain.ShippingTypeHome, domain.ShippingTypeDesk:
	default:
		verr.add("shipping_type", "shipping type must be home or desk")
	}

	region, regionKnown := s.catalog.RegionByID(ctx, cmd.RegionID)
	if cmd.RegionID == 0 {
		verr.add("region_id", "region is required")
	} else if !regionKnown {
		verr.add("region_id", "unknown region")
	}

	if cmd.ShippingType == domain.ShippingTypeHome {
		address := strings.TrimSpace(cmd.Address)
		if address == "" {
			verr.add("address", "address is required for home delivery")
		} else if utf8.RuneCountInString(address) < minAddressLength {
			verr.add("address", "address is too short")
		}
		commune := strings.TrimSpace(cmd.Commune)
		if commune == "" {
			verr.add("commune", "commune is required for home delivery")
		} else if regionKnown && !regionHasCommune(region, commune) {
			verr.add("commune", "commune does not belong to the selected region")
		}
	}

	if cmd.ShippingType == domain.ShippingTypeDesk {
		if cmd.CenterID == 0 {
			verr.add("center_id", "pickup center is required for desk delivery")
		} else if regionKnown && !regionHasCenter(region, cmd.CenterID) {
			verr.add("center_id", "center does not belong to the selected region")
		}
	}

	if len(cmd.Items) == 0 {
		verr.add("items", "at least one item is required")
	}
	for index, item := range cmd.Items {
		if item.Quantity < 1 {
			verr.add(fmt.Sprintf("items[%d].quantity", index), "quantity must be at least 1")
		}
		if item.UnitPrice < 0 {
			verr.add(fmt.Sprintf("items[%d].price", index), "price must not be negative")
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func validateName(verr *CheckoutValidationError, field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		verr.add(field, "name is required")
		return
	}
	if utf8.RuneCountInString(value) > maxNameLength {
		verr.add(field, "name is too long")
		return
	}
	if !namePattern.MatchString(value) {
		verr.add(field, "name may only contain letters")
	}
}

func regionHasCommune(region domain.Region, commune string) bool {
	for _, candidate := range region.Communes {
		if strings.EqualFold(candidate.Name, commune) {
			return true
		}
	}
	return false
}

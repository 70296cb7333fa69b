package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/dzirastore/api/internal/domain"
)

func newTestCheckoutService(t *testing.T, store *stubOrderStore, promotions bool) CheckoutService {
	t.Helper()
	catalog := &stubCatalog{regions: testRegions()}
	pricing, err := NewPricingEngine(PricingEngineDeps{Catalog: catalog})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Store:      store,
		Catalog:    catalog,
		Pricing:    pricing,
		Promotions: promotions,
		Clock:      func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) },
		OrderID:    func() string { return "ord_new" },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func validCheckoutCommand() CheckoutCommand {
	return CheckoutCommand{
		FirstName:    "Amina",
		LastName:     "Bensalem",
		Phone:        "0551234567",
		Address:      "12 rue Didouche Mourad",
		RegionID:     16,
		Commune:      "Hydra",
		ShippingType: domain.ShippingTypeHome,
		Items: []domain.OrderItem{
			{ID: "sku_1", Name: "Sneakers", Quantity: 2, UnitPrice: 150000},
		},
	}
}

func fieldMessages(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *CheckoutValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected CheckoutValidationError, got %v", err)
	}
	out := make(map[string]string, len(verr.Fields))
	for _, field := range verr.Fields {
		out[field.Field] = field.Message
	}
	return out
}

func TestNewCheckoutService(t *testing.T) {
	if _, err := NewCheckoutService(CheckoutServiceDeps{}); err == nil {
		t.Fatalf("expected constructor error")
	}
}

func TestCheckoutValidate(t *testing.T) {
	svc := newTestCheckoutService(t, &stubOrderStore{}, false)
	ctx := context.Background()

	t.Run("valid command passes", func(t *testing.T) {
		if err := svc.Validate(ctx, validCheckoutCommand()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("all failing fields reported together", func(t *testing.T) {
		err := svc.Validate(ctx, CheckoutCommand{})
		if !errors.Is(err, ErrCheckoutInvalidInput) {
			t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
		}
		fields := fieldMessages(t, err)
		for _, name := range []string{"first_name", "last_name", "phone", "shipping_type", "region_id", "items"} {
			if _, ok := fields[name]; !ok {
				t.Fatalf("expected a message for %q, got %#v", name, fields)
			}
		}
	})

	t.Run("phone format", func(t *testing.T) {
		cases := map[string]bool{
			"0551234567":  true,
			"0661234567":  true,
			"0771234567":  true,
			"0441234567":  false,
			"055123456":   false,
			"05512345678": false,
			"txt":         false,
		}
		for phone, ok := range cases {
			cmd := validCheckoutCommand()
			cmd.Phone = phone
			err := svc.Validate(ctx, cmd)
			if ok && err != nil {
				t.Fatalf("expected %q to pass, got %v", phone, err)
			}
			if !ok {
				fields := fieldMessages(t, err)
				if _, present := fields["phone"]; !present {
					t.Fatalf("expected phone error for %q", phone)
				}
			}
		}
	})

	t.Run("home delivery requires a usable address and commune", func(t *testing.T) {
		cmd := validCheckoutCommand()
		cmd.Address = "courte"
		cmd.Commune = "Oran"
		fields := fieldMessages(t, svc.Validate(ctx, cmd))
		if _, ok := fields["address"]; !ok {
			t.Fatalf("expected address error, got %#v", fields)
		}
		if _, ok := fields["commune"]; !ok {
			t.Fatalf("expected commune error for a foreign commune, got %#v", fields)
		}
	})

	t.Run("desk delivery requires a center in the region", func(t *testing.T) {
		cmd := validCheckoutCommand()
		cmd.ShippingType = domain.ShippingTypeDesk
		cmd.CenterID = 0
		fields := fieldMessages(t, svc.Validate(ctx, cmd))
		if _, ok := fields["center_id"]; !ok {
			t.Fatalf("expected center error, got %#v", fields)
		}

		cmd.CenterID = 999
		fields = fieldMessages(t, svc.Validate(ctx, cmd))
		if _, ok := fields["center_id"]; !ok {
			t.Fatalf("expected foreign center error, got %#v", fields)
		}

		cmd.CenterID = 12
		if err := svc.Validate(ctx, cmd); err != nil {
			t.Fatalf("expected valid desk command, got %v", err)
		}
	})

	t.Run("item lines validated individually", func(t *testing.T) {
		cmd := validCheckoutCommand()
		cmd.Items = []domain.OrderItem{
			{ID: "sku_1", Quantity: 0, UnitPrice: 100},
			{ID: "sku_2", Quantity: 1, UnitPrice: -5},
		}
		fields := fieldMessages(t, svc.Validate(ctx, cmd))
		if _, ok := fields["items[0].quantity"]; !ok {
			t.Fatalf("expected quantity error, got %#v", fields)
		}
		if _, ok := fields["items[1].price"]; !ok {
			t.Fatalf("expected price error, got %#v", fields)
		}
	})
}

func TestCheckoutSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending order with recomputed totals", func(t *testing.T) {
		var created domain.Order
		store := &stubOrderStore{
			createFn: func(_ context.Context, order domain.Order) error {
				created = order
				return nil
			},
		}
		svc := newTestCheckoutService(t, store, false)

		cmd := validCheckoutCommand()
		result, err := svc.Submit(ctx, cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created.ID != "ord_new" {
			t.Fatalf("unexpected order id %q", created.ID)
		}
		if created.Status != domain.StatusPending {
			t.Fatalf("expected pending status, got %q", created.Status)
		}
		if created.RegionName != "Alger" {
			t.Fatalf("expected region name resolved, got %q", created.RegionName)
		}
		if created.Subtotal != 300000 {
			t.Fatalf("unexpected subtotal %d", created.Subtotal)
		}
		if created.ShippingPrice != 60000 {
			t.Fatalf("unexpected shipping %d", created.ShippingPrice)
		}
		if created.Total != 360000 {
			t.Fatalf("unexpected total %d", created.Total)
		}
		if result.Quote.Total != 360000 {
			t.Fatalf("quote and order totals must agree, got %d", result.Quote.Total)
		}
	})

	t.Run("promotion applies only when the feature is enabled", func(t *testing.T) {
		cmd := validCheckoutCommand()
		cmd.PromoApplied = true

		var created domain.Order
		store := &stubOrderStore{
			createFn: func(_ context.Context, order domain.Order) error {
				created = order
				return nil
			},
		}

		disabled := newTestCheckoutService(t, store, false)
		result, err := disabled.Submit(ctx, cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Quote.Discount != 0 {
			t.Fatalf("expected no discount while disabled, got %d", result.Quote.Discount)
		}
		if created.PromoApplied || created.Discount != 0 {
			t.Fatalf("expected no promo on the order while disabled, got %+v", created)
		}

		enabled := newTestCheckoutService(t, store, true)
		result, err = enabled.Submit(ctx, cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Quote.Discount != 30000 {
			t.Fatalf("expected 10%% discount, got %d", result.Quote.Discount)
		}
		if !created.PromoApplied || created.Discount != 30000 {
			t.Fatalf("expected the promo recorded on the order, got applied=%v discount=%d", created.PromoApplied, created.Discount)
		}
		if created.Total != created.Subtotal-created.Discount+created.ShippingPrice {
			t.Fatalf("order money fields disagree: total=%d subtotal=%d discount=%d shipping=%d",
				created.Total, created.Subtotal, created.Discount, created.ShippingPrice)
		}
		if created.Total != 330000 {
			t.Fatalf("unexpected discounted total %d", created.Total)
		}
	})

	t.Run("home submission clears the center id", func(t *testing.T) {
		var created domain.Order
		store := &stubOrderStore{
			createFn: func(_ context.Context, order domain.Order) error {
				created = order
				return nil
			},
		}
		svc := newTestCheckoutService(t, store, false)

		cmd := validCheckoutCommand()
		cmd.CenterID = 12
		if _, err := svc.Submit(ctx, cmd); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created.CenterID != 0 {
			t.Fatalf("expected center id cleared, got %d", created.CenterID)
		}
	})

	t.Run("invalid command never reaches the store", func(t *testing.T) {
		store := &stubOrderStore{
			createFn: func(context.Context, domain.Order) error {
				t.Fatalf("store must not be called for an invalid command")
				return nil
			},
		}
		svc := newTestCheckoutService(t, store, false)

		if _, err := svc.Submit(ctx, CheckoutCommand{}); !errors.Is(err, ErrCheckoutInvalidInput) {
			t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
		}
	})

	t.Run("store failure maps to unavailable", func(t *testing.T) {
		store := &stubOrderStore{
			createFn: func(context.Context, domain.Order) error {
				return errors.New("store down")
			},
		}
		svc := newTestCheckoutService(t, store, false)

		if _, err := svc.Submit(ctx, validCheckoutCommand()); !errors.Is(err, ErrCheckoutUnavailable) {
			t.Fatalf("expected ErrCheckoutUnavailable, got %v", err)
		}
	})
}

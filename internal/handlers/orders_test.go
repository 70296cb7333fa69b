package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/dzirastore/api/internal/domain"
	"github.com/dzirastore/api/internal/services"
)

type stubOrderService struct {
	ordersFn           func(ctx context.Context, filter services.OrderFilter) ([]domain.OrderView, error)
	statisticsFn       func(ctx context.Context) (domain.OrderStats, error)
	confirmFn          func(ctx context.Context, cmd services.ConfirmOrderCommand) (services.ConfirmOrderResult, error)
	shipFn             func(ctx context.Context, orderID string) (domain.Order, error)
	cancelFn           func(ctx context.Context, orderID string) (domain.Order, error)
	changeStatusFn     func(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	bulkChangeStatusFn func(ctx context.Context, orderIDs []string, status domain.OrderStatus) (services.BatchResult, error)
	bulkDeleteFn       func(ctx context.Context, orderIDs []string) (services.BatchResult, error)
	documentsFn        func(ctx context.Context, orderIDs []string) ([]byte, error)
}

func (s *stubOrderService) Orders(ctx context.Context, filter services.OrderFilter) ([]domain.OrderView, error) {
	if s.ordersFn != nil {
		return s.ordersFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubOrderService) Statistics(ctx context.Context) (domain.OrderStats, error) {
	if s.statisticsFn != nil {
		return s.statisticsFn(ctx)
	}
	return domain.OrderStats{}, nil
}

func (s *stubOrderService) Confirm(ctx context.Context, cmd services.ConfirmOrderCommand) (services.ConfirmOrderResult, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, cmd)
	}
	return services.ConfirmOrderResult{}, nil
}

func (s *stubOrderService) Ship(ctx context.Context, orderID string) (domain.Order, error) {
	if s.shipFn != nil {
		return s.shipFn(ctx, orderID)
	}
	return domain.Order{}, nil
}

func (s *stubOrderService) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, orderID)
	}
	return domain.Order{}, nil
}

func (s *stubOrderService) ChangeStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if s.changeStatusFn != nil {
		return s.changeStatusFn(ctx, orderID, status)
	}
	return domain.Order{}, nil
}

func (s *stubOrderService) BulkChangeStatus(ctx context.Context, orderIDs []string, status domain.OrderStatus) (services.BatchResult, error) {
	if s.bulkChangeStatusFn != nil {
		return s.bulkChangeStatusFn(ctx, orderIDs, status)
	}
	return services.BatchResult{}, nil
}

func (s *stubOrderService) BulkDelete(ctx context.Context, orderIDs []string) (services.BatchResult, error) {
	if s.bulkDeleteFn != nil {
		return s.bulkDeleteFn(ctx, orderIDs)
	}
	return services.BatchResult{}, nil
}

func (s *stubOrderService) Documents(ctx context.Context, orderIDs []string) ([]byte, error) {
	if s.documentsFn != nil {
		return s.documentsFn(ctx, orderIDs)
	}
	return nil, nil
}

var _ services.OrderService = (*stubOrderService)(nil)

func newOrdersRouter(orders services.OrderService) chi.Router {
	r := chi.NewRouter()
	r.Route("/orders", NewOrderHandlers(orders).Routes)
	return r
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID: "ord_1",
		Customer: domain.Customer{
			FirstName: "Amina",
			LastName:  "Bensalem",
			Phone:     "0551234567",
			Address:   "12 rue Didouche Mourad",
		},
		RegionID:     16,
		RegionName:   "Alger",
		Commune:      "Hydra",
		ShippingType: domain.ShippingTypeHome,
		Status:       domain.StatusPending,
		Items: []domain.OrderItem{
			{ID: "sku_1", Name: "Djellaba", Quantity: 2, UnitPrice: 150000},
		},
		Subtotal:      300000,
		ShippingPrice: 60000,
		Total:         360000,
	}
}

func TestOrderHandlersListOrders(t *testing.T) {
	t.Run("passes the filter and renders views", func(t *testing.T) {
		var gotFilter services.OrderFilter
		stub := &stubOrderService{
			ordersFn: func(_ context.Context, filter services.OrderFilter) ([]domain.OrderView, error) {
				gotFilter = filter
				return []domain.OrderView{viewOf(sampleOrder())}, nil
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodGet, "/orders/?bucket=Pending&search=amina", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if gotFilter.Bucket != domain.BucketPending || gotFilter.Search != "amina" {
			t.Fatalf("unexpected filter %+v", gotFilter)
		}

		var body orderListResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if len(body.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(body.Items))
		}
		item := body.Items[0]
		if item.ID != "ord_1" || item.CustomerFirstName != "Amina" {
			t.Fatalf("unexpected item %+v", item)
		}
		if item.Bucket != "pending" || item.Badge.Label == "" {
			t.Fatalf("expected classification on the payload, got bucket %q badge %+v", item.Bucket, item.Badge)
		}
	})

	t.Run("store failure maps to 503", func(t *testing.T) {
		stub := &stubOrderService{
			ordersFn: func(context.Context, services.OrderFilter) ([]domain.OrderView, error) {
				return nil, services.ErrOrderStoreUnavailable
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", rr.Code)
		}
	})

	t.Run("nil service maps to 503", func(t *testing.T) {
		router := newOrdersRouter(nil)

		req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", rr.Code)
		}
	})
}

func TestOrderHandlersStatistics(t *testing.T) {
	stub := &stubOrderService{
		statisticsFn: func(context.Context) (domain.OrderStats, error) {
			return domain.OrderStats{
				Total: 4,
				Counts: map[domain.StatusBucket]int{
					domain.BucketPending:   2,
					domain.BucketDelivered: 2,
				},
				TotalRevenue: 720000,
			}, nil
		},
	}
	router := newOrdersRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/orders/statistics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body statisticsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Total != 4 || body.TotalRevenue != 720000 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Counts["pending"] != 2 || body.Counts["delivered"] != 2 {
		t.Fatalf("unexpected counts %+v", body.Counts)
	}
}

func TestOrderHandlersConfirm(t *testing.T) {
	t.Run("success returns the order and document url", func(t *testing.T) {
		var gotCmd services.ConfirmOrderCommand
		stub := &stubOrderService{
			confirmFn: func(_ context.Context, cmd services.ConfirmOrderCommand) (services.ConfirmOrderResult, error) {
				gotCmd = cmd
				confirmed := sampleOrder()
				confirmed.Status = domain.StatusConfirmed
				return services.ConfirmOrderResult{Order: confirmed, DocumentURL: "https://example.com/bordereau.pdf"}, nil
			},
		}
		router := newOrdersRouter(stub)

		payload := `{
			"shipping_type": "HOME",
			"region_id": 16,
			"commune": "Hydra",
			"is_free_shipping": false
		}`
		req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:confirm", strings.NewReader(payload))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if gotCmd.OrderID != "ord_1" || gotCmd.ShippingType != domain.ShippingTypeHome {
			t.Fatalf("unexpected command %+v", gotCmd)
		}

		var body confirmOrderResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if body.Order.Status != string(domain.StatusConfirmed) {
			t.Fatalf("expected confirmed status, got %q", body.Order.Status)
		}
		if body.DocumentURL != "https://example.com/bordereau.pdf" {
			t.Fatalf("unexpected document url %q", body.DocumentURL)
		}
	})

	t.Run("unknown order maps to 404", func(t *testing.T) {
		stub := &stubOrderService{
			confirmFn: func(context.Context, services.ConfirmOrderCommand) (services.ConfirmOrderResult, error) {
				return services.ConfirmOrderResult{}, services.ErrOrderNotFound
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/orders/ord_9:confirm", strings.NewReader(`{"shipping_type":"home","region_id":16,"commune":"Hydra"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("invalid state maps to 409", func(t *testing.T) {
		stub := &stubOrderService{
			confirmFn: func(context.Context, services.ConfirmOrderCommand) (services.ConfirmOrderResult, error) {
				return services.ConfirmOrderResult{}, services.ErrOrderInvalidState
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/orders/ord_3:confirm", strings.NewReader(`{"shipping_type":"home","region_id":16,"commune":"Hydra"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rr.Code)
		}
	})

	t.Run("missing body maps to 400", func(t *testing.T) {
		router := newOrdersRouter(&stubOrderService{})

		req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:confirm", strings.NewReader(""))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestOrderHandlersShip(t *testing.T) {
	stub := &stubOrderService{
		shipFn: func(_ context.Context, orderID string) (domain.Order, error) {
			order := sampleOrder()
			order.ID = orderID
			order.Status = domain.StatusShipped
			order.TrackingID = "yal-000123"
			return order, nil
		},
	}
	router := newOrdersRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_2:ship", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Order.ID != "ord_2" || body.Order.TrackingID != "yal-000123" {
		t.Fatalf("unexpected order %+v", body.Order)
	}
	if body.Order.Bucket != string(domain.BucketShipped) {
		t.Fatalf("expected shipped bucket, got %q", body.Order.Bucket)
	}
}

func TestOrderHandlersCancel(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		stub := &stubOrderService{
			cancelFn: func(_ context.Context, orderID string) (domain.Order, error) {
				order := sampleOrder()
				order.ID = orderID
				order.Status = domain.StatusCanceled
				return order, nil
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:cancel", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("terminal order maps to 409", func(t *testing.T) {
		stub := &stubOrderService{
			cancelFn: func(context.Context, string) (domain.Order, error) {
				return domain.Order{}, services.ErrOrderInvalidState
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/orders/ord_3:cancel", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rr.Code)
		}
	})
}

func TestOrderHandlersChangeStatus(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotStatus domain.OrderStatus
		stub := &stubOrderService{
			changeStatusFn: func(_ context.Context, _ string, status domain.OrderStatus) (domain.Order, error) {
				gotStatus = status
				order := sampleOrder()
				order.Status = status
				return order, nil
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:status", strings.NewReader(`{"status": " Ramassé "}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if gotStatus != domain.StatusPickedUp {
			t.Fatalf("expected trimmed status, got %q", gotStatus)
		}
	})

	t.Run("unknown status maps to 400", func(t *testing.T) {
		stub := &stubOrderService{
			changeStatusFn: func(context.Context, string, domain.OrderStatus) (domain.Order, error) {
				return domain.Order{}, services.ErrOrderInvalidInput
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:status", strings.NewReader(`{"status": "Téléporté"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestOrderHandlersBulkChangeStatus(t *testing.T) {
	t.Run("partial failure is reported in the body", func(t *testing.T) {
		stub := &stubOrderService{
			bulkChangeStatusFn: func(_ context.Context, orderIDs []string, status domain.OrderStatus) (services.BatchResult, error) {
				if len(orderIDs) != 2 || status != domain.StatusConfirmed {
					t.Fatalf("unexpected call: ids %v status %q", orderIDs, status)
				}
				return services.BatchResult{
					SuccessCount: 1,
					Failures:     []services.BatchFailure{{ID: "ord_2", Err: "order not found"}},
				}, nil
			},
		}
		router := newOrdersRouter(stub)

		payload := `{"orders": ["ord_1", "ord_2"], "status": "Confirmé"}`
		req := httptest.NewRequest(http.MethodPost, "/orders/bulk:status", strings.NewReader(payload))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var body services.BatchResult
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if body.SuccessCount != 1 || len(body.Failures) != 1 || body.Failures[0].ID != "ord_2" {
			t.Fatalf("unexpected result %+v", body)
		}
	})

	t.Run("overlapping run maps to 409", func(t *testing.T) {
		stub := &stubOrderService{
			bulkChangeStatusFn: func(context.Context, []string, domain.OrderStatus) (services.BatchResult, error) {
				return services.BatchResult{}, services.ErrBatchInFlight
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/orders/bulk:status", strings.NewReader(`{"orders": ["ord_1"], "status": "Confirmé"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rr.Code)
		}
	})
}

func TestOrderHandlersBulkDelete(t *testing.T) {
	stub := &stubOrderService{
		bulkDeleteFn: func(_ context.Context, orderIDs []string) (services.BatchResult, error) {
			return services.BatchResult{SuccessCount: len(orderIDs), Failures: []services.BatchFailure{}}, nil
		},
	}
	router := newOrdersRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/orders/bulk:delete", strings.NewReader(`{"orders": ["ord_1", "ord_2", "ord_3"]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body services.BatchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.SuccessCount != 3 || len(body.Failures) != 0 {
		t.Fatalf("unexpected result %+v", body)
	}
}

func TestOrderHandlersDocuments(t *testing.T) {
	t.Run("streams the workbook", func(t *testing.T) {
		bundle := []byte("PK\x03\x04fake-xlsx")
		stub := &stubOrderService{
			documentsFn: func(_ context.Context, orderIDs []string) ([]byte, error) {
				if len(orderIDs) != 2 {
					t.Fatalf("unexpected ids %v", orderIDs)
				}
				return bundle, nil
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/orders/documents", strings.NewReader(`{"orders": ["ord_1", "ord_2"]}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if got := rr.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
			t.Fatalf("unexpected content type %q", got)
		}
		if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "bordereaus.xlsx") {
			t.Fatalf("unexpected disposition %q", got)
		}
		if rr.Body.String() != string(bundle) {
			t.Fatalf("body does not match the store bundle")
		}
	})

	t.Run("empty selection maps to 400", func(t *testing.T) {
		stub := &stubOrderService{
			documentsFn: func(context.Context, []string) ([]byte, error) {
				return nil, services.ErrOrderInvalidInput
			},
		}
		router := newOrdersRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/orders/documents", strings.NewReader(`{"orders": []}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
	})
}

package orderstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	domain "github.com/dzirastore/api/internal/domain"
)

// ErrClientInvalidInput indicates the caller passed arguments the client
// cannot send to the store.
var ErrClientInvalidInput = errors.New("orderstore: invalid input")

const (
	defaultTimeout      = 10 * time.Second
	maxResponseBytes    = 16 << 20
	breakerOpenDuration = 30 * time.Second
)

// Error wraps a failed store call. It satisfies repositories.StoreError so
// upper layers can branch on not-found and unavailability without knowing
// about HTTP.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("orderstore: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("orderstore: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) IsNotFound() bool { return e.Status == http.StatusNotFound }

// IsUnavailable reports transport failures, server errors, and calls shed by
// the open circuit breaker.
func (e *Error) IsUnavailable() bool {
	if e.Status >= 500 {
		return true
	}
	if e.Status == 0 && e.Err != nil {
		return true
	}
	return false
}

// ClientDeps lists the collaborators required to construct a Client.
type ClientDeps struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// Client talks to the external order store over REST. All calls run through a
// circuit breaker so a down store fails fast instead of piling up timeouts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewClient validates deps and builds a Client.
func NewClient(deps ClientDeps) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrClientInvalidInput)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrClientInvalidInput, err)
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	client := &Client{
		baseURL:    base,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}
	client.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "orderstore",
		Timeout: breakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			client.logger(context.Background(), "orderstore.breaker_state", map[string]any{
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
	return client, nil
}

// FetchCatalog retrieves every region with its communes, centers, and
// shipping tables.
func (c *Client) FetchCatalog(ctx context.Context) ([]domain.Region, error) {
	var raws []rawRegion
	if err := c.getJSON(ctx, "fetch_catalog", "/shipping", &raws); err != nil {
		return nil, err
	}
	return mapRegions(raws), nil
}

// ListOrders retrieves all orders known to the store.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var envelope struct {
		Data []rawOrder `json:"data"`
	}
	if err := c.getJSON(ctx, "list_orders", "/orders", &envelope); err != nil {
		return nil, err
	}
	return mapOrders(envelope.Data), nil
}

// CreateOrder submits a new order to the store.
func (c *Client) CreateOrder(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return fmt.Errorf("%w: order id is required", ErrClientInvalidInput)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := c.postJSON(ctx, "create_order", "/orders", toRawOrder(order), &envelope); err != nil {
		return err
	}
	if strings.TrimSpace(envelope.Error) != "" {
		return &Error{Op: "create_order", Status: http.StatusUnprocessableEntity, Err: errors.New(envelope.Error)}
	}
	return nil
}

// UpdateOrder persists the full order payload. When the store generates a
// shipping document for the update it returns the document URL.
func (c *Client) UpdateOrder(ctx context.Context, order domain.Order) (string, error) {
	if strings.TrimSpace(order.ID) == "" {
		return "", fmt.Errorf("%w: order id is required", ErrClientInvalidInput)
	}
	var envelope struct {
		Message string `json:"message"`
		Data    string `json:"data"`
	}
	if err := c.postJSON(ctx, "update_order", "/orders/update", toRawOrder(order), &envelope); err != nil {
		return "", err
	}
	return strings.TrimSpace(envelope.Data), nil
}

// ChangeStatus moves the given orders to the supplied status in one call.
func (c *Client) ChangeStatus(ctx context.Context, orderIDs []string, status domain.OrderStatus) error {
	if len(orderIDs) == 0 {
		return fmt.Errorf("%w: at least one order id is required", ErrClientInvalidInput)
	}
	payload := struct {
		Orders []string `json:"orders"`
		Status string   `json:"status"`
	}{Orders: orderIDs, Status: string(status)}
	return c.postJSON(ctx, "change_status", "/orders/change-status", payload, nil)
}

// DeleteOrder removes a single order from the store.
func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrClientInvalidInput)
	}
	return c.do(ctx, "delete_order", http.MethodDelete, "/orders/"+url.PathEscape(orderID), nil, func(resp *http.Response) error {
		return nil
	})
}

// DownloadDocuments fetches the carrier document bundle for the given orders
// as raw bytes.
func (c *Client) DownloadDocuments(ctx context.Context, orderIDs []string) ([]byte, error) {
	if len(orderIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one order id is required", ErrClientInvalidInput)
	}
	payload := struct {
		Orders []string `json:"orders"`
	}{Orders: orderIDs}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("orderstore: encode download_documents payload: %w", err)
	}

	var bundle []byte
	err = c.do(ctx, "download_documents", http.MethodPost, "/orders/Bordereaus", body, func(resp *http.Response) error {
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if readErr != nil {
			return &Error{Op: "download_documents", Err: readErr}
		}
		bundle = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	return c.do(ctx, op, http.MethodGet, path, nil, func(resp *http.Response) error {
		return decodeJSON(op, resp.Body, out)
	})
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("orderstore: encode %s payload: %w", op, err)
	}
	return c.do(ctx, op, http.MethodPost, path, body, func(resp *http.Response) error {
		if out == nil {
			return nil
		}
		return decodeJSON(op, resp.Body, out)
	})
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, handle func(*http.Response) error) error {
	started := time.Now()
	_, err := c.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, reqErr := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
		if reqErr != nil {
			return nil, &Error{Op: op, Err: reqErr}
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return nil, &Error{Op: op, Err: doErr}
		}
		defer func() {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
			resp.Body.Close()
		}()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
		}
		return nil, handle(resp)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &Error{Op: op, Err: err}
		}
		var storeErr *Error
		if !errors.As(err, &storeErr) {
			err = &Error{Op: op, Err: err}
		}
		c.logger(ctx, "orderstore.call_failed", map[string]any{
			"op":          op,
			"duration_ms": time.Since(started).Milliseconds(),
			"error":       err.Error(),
		})
		return err
	}
	return nil
}

func decodeJSON(op string, body io.Reader, out any) error {
	decoder := json.NewDecoder(io.LimitReader(body, maxResponseBytes))
	if err := decoder.Decode(out); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

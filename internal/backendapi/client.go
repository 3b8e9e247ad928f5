package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// Error is a failed backend call: a non-2xx response or a 2xx envelope with success=false.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case domain.ErrInvalidTransition:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// ServerMessage returns the backend-supplied message carried by err, if any.
func ServerMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// Client speaks the order/payment REST contract. It never retries.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL: baseURL,
		client:  client,
	}
}

type GuestOrderItem struct {
	MenuID   int64 `json:"menuId"`
	Quantity int   `json:"quantity"`
}

type CreateGuestOrderRequest struct {
	TableNumber  int              `json:"tableNumber"`
	CustomerName string           `json:"customerName"`
	Items        []GuestOrderItem `json:"items"`
}

// CreateGuestOrder submits a guest order. idempotencyKey is sent as the Idempotency-Key header when set.
func (c *Client) CreateGuestOrder(ctx context.Context, req CreateGuestOrderRequest, idempotencyKey string) (domain.Order, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	data, err := c.do(ctx, http.MethodPost, "/orders/guest", req, headers)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create guest order: %w", err)
	}

	return decodeOrder(data)
}

func (c *Client) CreateManualPayment(ctx context.Context, orderID int64) (domain.Payment, error) {
	body := map[string]int64{"orderId": orderID}

	data, err := c.do(ctx, http.MethodPost, "/payments/guest/manual", body, nil)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("create manual payment: %w", err)
	}

	var resp struct {
		Payment json.RawMessage `json:"payment"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.Payment{}, fmt.Errorf("decode manual payment: %w", err)
	}

	p, err := decodePayment(resp.Payment)
	if err != nil {
		return domain.Payment{}, err
	}
	if p.OrderID == 0 {
		p.OrderID = orderID
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = domain.PaymentMethodManual
	}
	return p, nil
}

// DigitalPayment is the provider handoff returned by payment initialization.
type DigitalPayment struct {
	Token       string
	RedirectURL string
	Payment     domain.Payment
}

func (c *Client) InitDigitalPayment(ctx context.Context, orderID int64, firstName string) (DigitalPayment, error) {
	body := map[string]any{
		"orderId": orderID,
		"customer": map[string]string{
			"first_name": firstName,
		},
	}

	data, err := c.do(ctx, http.MethodPost, "/payments/guest/pay", body, nil)
	if err != nil {
		return DigitalPayment{}, fmt.Errorf("init digital payment: %w", err)
	}

	var resp struct {
		Midtrans struct {
			Token       string `json:"token"`
			RedirectURL string `json:"redirect_url"`
		} `json:"midtrans"`
		Payment json.RawMessage `json:"payment"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return DigitalPayment{}, fmt.Errorf("decode digital payment: %w", err)
	}

	out := DigitalPayment{
		Token:       resp.Midtrans.Token,
		RedirectURL: resp.Midtrans.RedirectURL,
	}
	if len(resp.Payment) > 0 {
		p, err := decodePayment(resp.Payment)
		if err != nil {
			return DigitalPayment{}, err
		}
		out.Payment = p
	}
	if out.Payment.OrderID == 0 {
		out.Payment.OrderID = orderID
	}
	if out.Payment.PaymentMethod == "" {
		out.Payment.PaymentMethod = domain.PaymentMethodQRIS
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	data, err := c.do(ctx, http.MethodGet, "/orders/"+strconv.FormatInt(id, 10), nil, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return decodeOrder(data)
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	data, err := c.do(ctx, http.MethodGet, "/orders", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	items, err := decodeList(data, "items", "orders")
	if err != nil {
		return nil, fmt.Errorf("decode order list: %w", err)
	}

	orders := make([]domain.Order, 0, len(items))
	for _, raw := range items {
		o, err := decodeOrder(raw)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (c *Client) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	data, err := c.do(ctx, http.MethodGet, "/payments", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	items, err := decodeList(data, "payments", "items")
	if err != nil {
		return nil, fmt.Errorf("decode payment list: %w", err)
	}

	payments := make([]domain.Payment, 0, len(items))
	for _, raw := range items {
		p, err := decodePayment(raw)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	body := map[string]string{"status": string(status)}

	data, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d/status", id), body, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order %d status: %w", id, err)
	}
	return decodeOrder(data)
}

func (c *Client) UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (domain.Payment, error) {
	body := map[string]string{"status": string(status)}

	data, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/payments/%d/status", id), body, nil)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("update payment %d status: %w", id, err)
	}
	return decodePayment(data)
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return nil, &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	if !env.Success {
		return nil, &Error{StatusCode: resp.StatusCode, Message: env.Message}
	}

	return env.Data, nil
}

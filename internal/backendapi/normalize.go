package backendapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

const unknownItemName = "Unknown item"

// rawObject gives alias-tolerant access to a backend JSON object. The backend mixes camelCase and
// snake_case field names and sometimes sends numbers as strings.
type rawObject map[string]json.RawMessage

func (o rawObject) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := o[k]
		if !ok {
			continue
		}
		if s := bytes.TrimSpace(v); len(s) == 0 || string(s) == "null" {
			continue
		}
		return v, true
	}
	return nil, false
}

func (o rawObject) number(keys ...string) int64 {
	for _, k := range keys {
		raw, ok := o.lookup(k)
		if !ok {
			continue
		}
		if f, ok := parseNumber(raw); ok && f != 0 {
			return int64(math.Round(f))
		}
	}
	return 0
}

func (o rawObject) text(keys ...string) string {
	for _, k := range keys {
		raw, ok := o.lookup(k)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func (o rawObject) timestamp(keys ...string) time.Time {
	s := o.text(keys...)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// decodeList accepts either a bare JSON array or an object wrapping the array under one of keys.
func decodeList(data json.RawMessage, keys ...string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}

	var items []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var obj rawObject
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	raw, ok := obj.lookup(keys...)
	if !ok {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func decodeOrder(data json.RawMessage) (domain.Order, error) {
	var obj rawObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}

	method, ok := domain.ParsePaymentMethod(obj.text("paymentMethod", "payment_method"))
	if !ok {
		method = domain.PaymentMethodManual
	}

	order := domain.Order{
		ID:            obj.number("id"),
		TableNumber:   int(obj.number("tableNumber", "table_number")),
		CustomerName:  obj.text("customerName", "customer_name"),
		Status:        domain.OrderStatus(obj.text("status")),
		TotalAmount:   obj.number("totalAmount", "total_amount"),
		PaymentMethod: method,
		CreatedAt:     obj.timestamp("createdAt", "created_at"),
		Items:         []domain.OrderLine{},
	}

	if raw, ok := obj.lookup("items", "order_items"); ok {
		var lines []rawObject
		if err := json.Unmarshal(raw, &lines); err != nil {
			return domain.Order{}, fmt.Errorf("decode order %d items: %w", order.ID, err)
		}
		for _, l := range lines {
			order.Items = append(order.Items, decodeLine(l))
		}
	}

	return order, nil
}

func decodeLine(l rawObject) domain.OrderLine {
	name := l.text("name", "product_name", "menu_name", "itemName", "menu_item_name")
	if name == "" {
		name = unknownItemName
	}
	return domain.OrderLine{
		MenuItemID: l.number("menuId", "menu_id", "menuItemId", "menu_item_id"),
		Name:       name,
		Quantity:   int(l.number("quantity")),
		UnitPrice:  l.number("unitPrice", "unit_price", "price"),
	}
}

func decodePayment(data json.RawMessage) (domain.Payment, error) {
	if t := bytes.TrimSpace(data); len(t) == 0 || string(t) == "null" {
		return domain.Payment{}, nil
	}

	var obj rawObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return domain.Payment{}, fmt.Errorf("decode payment: %w", err)
	}

	method, _ := domain.ParsePaymentMethod(obj.text("paymentMethod", "payment_method"))

	return domain.Payment{
		ID:            obj.number("id"),
		OrderID:       obj.number("orderId", "order_id"),
		Amount:        obj.number("amount"),
		PaymentMethod: method,
		Status:        domain.PaymentStatus(obj.text("status")),
		CreatedAt:     obj.timestamp("createdAt", "created_at"),
	}, nil
}

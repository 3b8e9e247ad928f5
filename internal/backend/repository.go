package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

var ErrNotFound = errors.New("not found")

// MenuItemError reports a cart line that references a missing or unavailable menu item.
type MenuItemError struct {
	MenuItemID int64
}

func (e *MenuItemError) Error() string {
	return fmt.Sprintf("menu item %d is not available", e.MenuItemID)
}

type NewOrder struct {
	TableNumber    int
	CustomerName   string
	Items          []domain.CartLine
	IdempotencyKey string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type menuItem struct {
	name  string
	price int64
}

func (r *Repository) menuItems(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]menuItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, price
		FROM menu_items
		WHERE id = ANY($1) AND available
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make(map[int64]menuItem, len(ids))
	for rows.Next() {
		var id int64
		var it menuItem
		if err := rows.Scan(&id, &it.name, &it.price); err != nil {
			return nil, err
		}
		items[id] = it
	}
	return items, rows.Err()
}

// CreateOrder prices every line from menu_items at insert time. A repeated idempotency key
// returns the order created by the first request.
func (r *Repository) CreateOrder(ctx context.Context, req NewOrder) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if req.IdempotencyKey != "" {
		var existing int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE idempotency_key = $1`, req.IdempotencyKey).Scan(&existing)
		if err == nil {
			_ = tx.Rollback()
			return r.GetOrder(ctx, existing)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	ids := make([]int64, 0, len(req.Items))
	for _, line := range req.Items {
		ids = append(ids, line.MenuItemID)
	}
	menu, err := r.menuItems(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("load menu prices: %w", err)
	}

	order := &domain.Order{
		TableNumber:   req.TableNumber,
		CustomerName:  req.CustomerName,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodManual,
		Items:         make([]domain.OrderLine, 0, len(req.Items)),
	}
	for _, line := range req.Items {
		it, ok := menu[line.MenuItemID]
		if !ok {
			return nil, &MenuItemError{MenuItemID: line.MenuItemID}
		}
		order.Items = append(order.Items, domain.OrderLine{
			MenuItemID: line.MenuItemID,
			Name:       it.name,
			Quantity:   line.Quantity,
			UnitPrice:  it.price,
		})
	}
	order.TotalAmount = domain.LinesTotal(order.Items)

	var key sql.NullString
	if req.IdempotencyKey != "" {
		key = sql.NullString{String: req.IdempotencyKey, Valid: true}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (table_number, customer_name, status, total_amount, payment_method, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, order.TableNumber, order.CustomerName, order.Status, order.TotalAmount, order.PaymentMethod, key).
		Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, line.MenuItemID, line.Name, line.Quantity, line.UnitPrice)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

const orderColumns = `id, table_number, customer_name, status, total_amount, payment_method, created_at`

func scanOrder(row interface{ Scan(...any) error }, o *domain.Order) error {
	return row.Scan(&o.ID, &o.TableNumber, &o.CustomerName, &o.Status, &o.TotalAmount, &o.PaymentMethod, &o.CreatedAt)
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order := &domain.Order{}
	err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, map[int64]*domain.Order{order.ID: order}, []int64{order.ID}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns every order newest first, loading all lines in one query.
func (r *Repository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[int64]*domain.Order)
	var orderIDs []int64
	for rows.Next() {
		order := &domain.Order{Items: []domain.OrderLine{}}
		if err := scanOrder(rows, order); err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}
	if err := r.loadItems(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}
	return orders, nil
}

func (r *Repository) loadItems(ctx context.Context, orders map[int64]*domain.Order, ids []int64) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, menu_item_id, name, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID int64
		var line domain.OrderLine
		if err := rows.Scan(&orderID, &line.MenuItemID, &line.Name, &line.Quantity, &line.UnitPrice); err != nil {
			return err
		}
		if o := orders[orderID]; o != nil {
			o.Items = append(o.Items, line)
		}
	}
	return rows.Err()
}

// UpdateOrderStatus applies a transition under a row lock. It returns the updated order and
// the status it moved from; a forbidden transition returns a *domain.TransitionError.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, domain.OrderStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback() }()

	var from domain.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}

	if err := domain.CheckOrderTransition(from, status); err != nil {
		return nil, from, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id); err != nil {
		return nil, from, err
	}
	if err := tx.Commit(); err != nil {
		return nil, from, err
	}

	order, err := r.GetOrder(ctx, id)
	return order, from, err
}

const paymentColumns = `id, order_id, amount, payment_method, status, created_at`

func scanPayment(row interface{ Scan(...any) error }, p *domain.Payment) error {
	return row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.PaymentMethod, &p.Status, &p.CreatedAt)
}

// CreatePayment records the single payment of an order. If the order already has one, that
// payment and its token are returned unchanged.
func (r *Repository) CreatePayment(ctx context.Context, orderID int64, method domain.PaymentMethod, token string) (*domain.Payment, string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	err = tx.QueryRowContext(ctx, `SELECT total_amount FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}

	p := &domain.Payment{}
	var existingToken sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT `+paymentColumns+`, token FROM payments WHERE order_id = $1`, orderID).
		Scan(&p.ID, &p.OrderID, &p.Amount, &p.PaymentMethod, &p.Status, &p.CreatedAt, &existingToken)
	if err == nil {
		return p, existingToken.String, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", err
	}

	var tok sql.NullString
	if token != "" {
		tok = sql.NullString{String: token, Valid: true}
	}
	err = scanPayment(tx.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, amount, payment_method, status, token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+paymentColumns,
		orderID, total, method, domain.PaymentStatusPending, tok), p)
	if err != nil {
		return nil, "", err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET payment_method = $1, updated_at = NOW() WHERE id = $2`, method, orderID); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(); err != nil {
		return nil, "", err
	}
	return p, token, nil
}

func (r *Repository) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	payments := []domain.Payment{}
	for rows.Next() {
		var p domain.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *Repository) UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var from domain.PaymentStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := domain.CheckPaymentTransition(from, status); err != nil {
		return nil, err
	}

	p := &domain.Payment{}
	err = scanPayment(tx.QueryRowContext(ctx, `
		UPDATE payments SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+paymentColumns, status, id), p)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// Package receipt renders customer receipts. Receipts are derived from an order and never
// change its state.
package receipt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

const width = 32

type Receipt struct {
	OrderID int64
	Text    string
}

// Render lays the order out as fixed-width plain text.
func Render(order domain.Order) Receipt {
	var b strings.Builder

	center(&b, "ORDER RECEIPT")
	rule(&b)
	fmt.Fprintf(&b, "Order #%d\n", order.ID)
	fmt.Fprintf(&b, "Table %d\n", order.TableNumber)
	fmt.Fprintf(&b, "Customer: %s\n", order.CustomerName)
	if !order.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", order.CreatedAt.Local().Format(time.DateTime))
	}
	rule(&b)

	for _, line := range order.Items {
		row(&b, fmt.Sprintf("%dx %s", line.Quantity, line.Name), Rupiah(line.Subtotal()))
	}

	rule(&b)
	row(&b, "TOTAL", Rupiah(order.TotalAmount))
	rule(&b)
	center(&b, "PAID via "+strings.ToUpper(string(order.PaymentMethod)))
	center(&b, "THANK YOU")

	return Receipt{OrderID: order.ID, Text: b.String()}
}

// Rupiah formats an amount with dot thousand separators, e.g. "Rp 30.000".
func Rupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + "Rp " + b.String()
}

func rule(b *strings.Builder) {
	b.WriteString(strings.Repeat("-", width))
	b.WriteByte('\n')
}

func center(b *strings.Builder, s string) {
	if pad := (width - len(s)) / 2; pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	b.WriteString(s)
	b.WriteByte('\n')
}

func row(b *strings.Builder, left, right string) {
	gap := width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(left)
	b.WriteString(strings.Repeat(" ", gap))
	b.WriteString(right)
	b.WriteByte('\n')
}

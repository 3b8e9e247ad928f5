package domain

import "testing"

func TestDerivedAcceptancePath(t *testing.T) {
	paid := &Payment{Status: PaymentStatusPaid}
	pending := &Payment{Status: PaymentStatusPending}

	tests := []struct {
		name    string
		order   Order
		payment *Payment
		want    AcceptancePath
	}{
		{"digital order", Order{PaymentMethod: PaymentMethodQRIS}, pending, AutoAccept},
		{"digital order without payment", Order{PaymentMethod: PaymentMethodQRIS}, nil, AutoAccept},
		{"manual order already paid", Order{PaymentMethod: PaymentMethodManual}, paid, AutoAccept},
		{"manual order pending payment", Order{PaymentMethod: PaymentMethodManual}, pending, OfferReceiptChoice},
		{"manual order without payment", Order{PaymentMethod: PaymentMethodManual}, nil, OfferReceiptChoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivedAcceptancePath(tt.order, tt.payment); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAcceptancePath_EmitsReceipt(t *testing.T) {
	if !AutoAccept.EmitsReceipt(ReceiptChoiceNone) {
		t.Error("auto accept must always emit a receipt")
	}
	if !OfferReceiptChoice.EmitsReceipt(AcceptAndPrint) {
		t.Error("accept and print must emit a receipt")
	}
	if OfferReceiptChoice.EmitsReceipt(AcceptOnly) {
		t.Error("accept only must not emit a receipt")
	}
}

func TestLinesTotal(t *testing.T) {
	lines := []OrderLine{
		{MenuItemID: 1, Quantity: 2, UnitPrice: 15000},
		{MenuItemID: 2, Quantity: 1, UnitPrice: 8000},
	}
	if got := LinesTotal(lines); got != 38000 {
		t.Errorf("expected 38000, got %d", got)
	}
	if got := LinesTotal(nil); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

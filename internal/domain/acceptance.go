package domain

type AcceptancePath int

const (
	// AutoAccept accepts the order and emits a receipt without asking staff.
	AutoAccept AcceptancePath = iota
	// OfferReceiptChoice lets staff pick between accept-and-print and accept-only.
	OfferReceiptChoice
)

func (p AcceptancePath) String() string {
	switch p {
	case AutoAccept:
		return "auto_accept"
	case OfferReceiptChoice:
		return "offer_receipt_choice"
	}
	return "unknown"
}

// DerivedAcceptancePath decides how a pending order is accepted. Digital orders and orders whose
// payment is already paid are accepted with a receipt; manual unpaid orders get the choice.
// payment may be nil when the snapshot holds no payment for the order yet.
func DerivedAcceptancePath(order Order, payment *Payment) AcceptancePath {
	if order.PaymentMethod.IsDigital() {
		return AutoAccept
	}
	if payment != nil && payment.Status == PaymentStatusPaid {
		return AutoAccept
	}
	return OfferReceiptChoice
}

type ReceiptChoice int

const (
	ReceiptChoiceNone ReceiptChoice = iota
	AcceptAndPrint
	AcceptOnly
)

// EmitsReceipt reports whether accepting along path with choice prints a receipt.
func (p AcceptancePath) EmitsReceipt(choice ReceiptChoice) bool {
	if p == AutoAccept {
		return true
	}
	return choice == AcceptAndPrint
}

package checkout

import (
	"strings"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

// ValidationError is malformed checkout input, caught before any backend call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const (
	msgNameRequired      = "customer name is required"
	msgTableInvalid      = "table number must be a positive integer"
	msgCartEmpty         = "cart is empty"
	msgCartLineInvalid   = "cart contains an invalid item"
	msgMethodUnsupported = "unsupported payment method"
)

type validRequest struct {
	cart         []domain.CartLine
	tableNumber  int
	customerName string
	method       domain.PaymentMethod
}

func validate(req Request) (validRequest, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return validRequest{}, &ValidationError{Message: msgNameRequired}
	}
	if req.TableNumber < 1 {
		return validRequest{}, &ValidationError{Message: msgTableInvalid}
	}
	if len(req.Cart) == 0 {
		return validRequest{}, &ValidationError{Message: msgCartEmpty}
	}
	for _, line := range req.Cart {
		if line.MenuItemID < 1 || line.Quantity < 1 {
			return validRequest{}, &ValidationError{Message: msgCartLineInvalid}
		}
	}
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return validRequest{}, &ValidationError{Message: msgMethodUnsupported}
	}

	return validRequest{
		cart:         req.Cart,
		tableNumber:  req.TableNumber,
		customerName: name,
		method:       method,
	}, nil
}

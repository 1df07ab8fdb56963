package usecase

import (
	"errors"
	"fmt"
)

// ルーター層がエラー種別をボディに出せるよう、statusに加えてcodeを持つ。
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func NewHTTPError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// エラー種別。リトライしてよいのは payment_unavailable だけ。
const (
	CodeValidation          = "validation"
	CodeInvalidQuantity     = "invalid_quantity"
	CodeVariantNotFound     = "variant_not_found"
	CodeInsufficientStock   = "insufficient_stock"
	CodeItemNotFound        = "item_not_found"
	CodeCartEmpty           = "cart_empty"
	CodeOrderNotFound       = "order_not_found"
	CodeIdempotencyConflict = "idempotency_conflict"
	CodeInvalidTransition   = "invalid_transition"
	CodePaymentDeclined     = "payment_declined"
	CodePaymentUnavailable  = "payment_unavailable"
	CodeRefundFailed        = "refund_failed"
	CodeNotFound            = "not_found"
	CodeForbidden           = "forbidden"
	CodeUnauthorized        = "unauthorized"
	CodeInternal            = "internal"
)

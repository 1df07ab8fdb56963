package payment

import (
	"context"
	"errors"
)

// 決済エラーの分類。
// ErrDeclined は確定NG（リトライしない）、ErrUnavailable は一時障害（同じキーで再試行可）。
var (
	ErrDeclined     = errors.New("payment declined")
	ErrUnavailable  = errors.New("payment gateway unavailable")
	ErrRefundFailed = errors.New("refund failed")
)

type CaptureRequest struct {
	AmountCents        int64
	Currency           string
	PaymentMethodToken string
	//呼び出し元が渡すキー。同じキーなら二重課金しない
	IdempotencyKey string
	Metadata       map[string]string
}

type CaptureResult struct {
	//PSP側のチャージID
	PaymentRef string
}

type RefundResult struct {
	RefundRef string
}

// PSPを安定したインターフェースの後ろに隠す。
// 実装はこの2メソッドだけ満たせばよい。
type Gateway interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
	Refund(ctx context.Context, paymentRef string) (RefundResult, error)
}

package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// 開発用のトークン。本物のPSPの代わりに挙動を割り当てる
const (
	TokenDeclined    = "tok_declined"
	TokenUnavailable = "tok_unavailable"
)

// FakeGateway はPSPなしで動かすためのインメモリ実装。
// Idempotency-Keyを覚えていて、同じキーには同じPaymentRefを返す。
type FakeGateway struct {
	mu       sync.Mutex
	byKey    map[string]string
	refunded map[string]bool
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		byKey:    make(map[string]string),
		refunded: make(map[string]bool),
	}
}

func (g *FakeGateway) Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	switch req.PaymentMethodToken {
	case TokenDeclined:
		return CaptureResult{}, fmt.Errorf("%w: status=card_declined", ErrDeclined)
	case TokenUnavailable:
		return CaptureResult{}, fmt.Errorf("%w: simulated outage", ErrUnavailable)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if ref, ok := g.byKey[req.IdempotencyKey]; ok {
		//再送。二重課金しない
		return CaptureResult{PaymentRef: ref}, nil
	}

	ref := "ch_" + uuid.NewString()
	g.byKey[req.IdempotencyKey] = ref

	return CaptureResult{PaymentRef: ref}, nil
}

func (g *FakeGateway) Refund(ctx context.Context, paymentRef string) (RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if paymentRef == "" {
		return RefundResult{}, fmt.Errorf("%w: missing charge", ErrRefundFailed)
	}
	if g.refunded[paymentRef] {
		return RefundResult{}, fmt.Errorf("%w: already refunded", ErrRefundFailed)
	}

	g.refunded[paymentRef] = true
	return RefundResult{RefundRef: "re_" + uuid.NewString()}, nil
}

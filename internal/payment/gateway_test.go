package payment_test

import (
	"context"
	"errors"
	"testing"

	"app/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type ClientMock struct{ mock.Mock }

func (m *ClientMock) CreateCharge(ctx context.Context, req payment.ChargeRequest, idempotencyKey string) (payment.Charge, error) {
	args := m.Called(ctx, req, idempotencyKey)
	c, _ := args.Get(0).(payment.Charge)
	return c, args.Error(1)
}

func (m *ClientMock) CreateRefund(ctx context.Context, chargeID string) (payment.Refund, error) {
	args := m.Called(ctx, chargeID)
	r, _ := args.Get(0).(payment.Refund)
	return r, args.Error(1)
}

func captureReq(token, key string) payment.CaptureRequest {
	return payment.CaptureRequest{
		AmountCents:        5530,
		Currency:           "USD",
		PaymentMethodToken: token,
		IdempotencyKey:     key,
	}
}

// =====================
// PSPClientGateway
// =====================

func TestPSPClientGateway_Capture_Succeeded(t *testing.T) {
	client := new(ClientMock)
	g := payment.NewPSPClientGateway(client)

	client.On("CreateCharge", mock.Anything, mock.Anything, "key-1").
		Return(payment.Charge{ID: "ch_1", Status: "succeeded"}, nil)

	res, err := g.Capture(context.Background(), captureReq("tok_visa", "key-1"))
	assert.NoError(t, err)
	assert.Equal(t, "ch_1", res.PaymentRef)
}

func TestPSPClientGateway_Capture_DuplicateIsSuccess(t *testing.T) {
	client := new(ClientMock)
	g := payment.NewPSPClientGateway(client)

	// 再送。PSPは元のチャージを返す
	client.On("CreateCharge", mock.Anything, mock.Anything, "key-1").
		Return(payment.Charge{ID: "ch_1", Status: "duplicate"}, nil)

	res, err := g.Capture(context.Background(), captureReq("tok_visa", "key-1"))
	assert.NoError(t, err)
	assert.Equal(t, "ch_1", res.PaymentRef)
}

func TestPSPClientGateway_Capture_DeclinedStatus(t *testing.T) {
	client := new(ClientMock)
	g := payment.NewPSPClientGateway(client)

	client.On("CreateCharge", mock.Anything, mock.Anything, "key-1").
		Return(payment.Charge{ID: "ch_1", Status: "card_declined"}, nil)

	_, err := g.Capture(context.Background(), captureReq("tok_visa", "key-1"))
	assert.True(t, errors.Is(err, payment.ErrDeclined))
}

func TestPSPClientGateway_Capture_TransportErrorIsUnavailable(t *testing.T) {
	client := new(ClientMock)
	g := payment.NewPSPClientGateway(client)

	client.On("CreateCharge", mock.Anything, mock.Anything, "key-1").
		Return(payment.Charge{}, errors.New("connection reset"))

	_, err := g.Capture(context.Background(), captureReq("tok_visa", "key-1"))
	assert.True(t, errors.Is(err, payment.ErrUnavailable))
}

func TestPSPClientGateway_Refund_Succeeded(t *testing.T) {
	client := new(ClientMock)
	g := payment.NewPSPClientGateway(client)

	client.On("CreateRefund", mock.Anything, "ch_1").
		Return(payment.Refund{ID: "re_1", Status: "succeeded"}, nil)

	res, err := g.Refund(context.Background(), "ch_1")
	assert.NoError(t, err)
	assert.Equal(t, "re_1", res.RefundRef)
}

func TestPSPClientGateway_Refund_NonSuccessStatus(t *testing.T) {
	client := new(ClientMock)
	g := payment.NewPSPClientGateway(client)

	client.On("CreateRefund", mock.Anything, "ch_1").
		Return(payment.Refund{ID: "re_1", Status: "failed"}, nil)

	_, err := g.Refund(context.Background(), "ch_1")
	assert.True(t, errors.Is(err, payment.ErrRefundFailed))
}

func TestPSPClientGateway_Refund_TransportError(t *testing.T) {
	client := new(ClientMock)
	g := payment.NewPSPClientGateway(client)

	client.On("CreateRefund", mock.Anything, "ch_1").
		Return(payment.Refund{}, errors.New("timeout"))

	_, err := g.Refund(context.Background(), "ch_1")
	assert.True(t, errors.Is(err, payment.ErrRefundFailed))
}

// =====================
// FakeGateway
// =====================

func TestFakeGateway_Capture_ReplaysSameKey(t *testing.T) {
	g := payment.NewFakeGateway()

	first, err := g.Capture(context.Background(), captureReq("tok_visa", "key-1"))
	assert.NoError(t, err)
	assert.NotEmpty(t, first.PaymentRef)

	second, err := g.Capture(context.Background(), captureReq("tok_visa", "key-1"))
	assert.NoError(t, err)
	assert.Equal(t, first.PaymentRef, second.PaymentRef)

	other, err := g.Capture(context.Background(), captureReq("tok_visa", "key-2"))
	assert.NoError(t, err)
	assert.NotEqual(t, first.PaymentRef, other.PaymentRef)
}

func TestFakeGateway_Capture_DeclinedToken(t *testing.T) {
	g := payment.NewFakeGateway()

	_, err := g.Capture(context.Background(), captureReq(payment.TokenDeclined, "key-1"))
	assert.True(t, errors.Is(err, payment.ErrDeclined))
}

func TestFakeGateway_Capture_UnavailableToken(t *testing.T) {
	g := payment.NewFakeGateway()

	_, err := g.Capture(context.Background(), captureReq(payment.TokenUnavailable, "key-1"))
	assert.True(t, errors.Is(err, payment.ErrUnavailable))
}

func TestFakeGateway_Refund_OnlyOnce(t *testing.T) {
	g := payment.NewFakeGateway()

	res, err := g.Capture(context.Background(), captureReq("tok_visa", "key-1"))
	assert.NoError(t, err)

	refund, err := g.Refund(context.Background(), res.PaymentRef)
	assert.NoError(t, err)
	assert.NotEmpty(t, refund.RefundRef)

	_, err = g.Refund(context.Background(), res.PaymentRef)
	assert.True(t, errors.Is(err, payment.ErrRefundFailed))
}

func TestFakeGateway_Refund_MissingRef(t *testing.T) {
	g := payment.NewFakeGateway()

	_, err := g.Refund(context.Background(), "")
	assert.True(t, errors.Is(err, payment.ErrRefundFailed))
}

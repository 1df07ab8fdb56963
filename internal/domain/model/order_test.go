package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusCreated, OrderStatusPaid, true},
		{OrderStatusCreated, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusSentToBrand, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusSentToBrand, OrderStatusFulfilled, true},
		{OrderStatusFulfilled, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusReturnRequested, true},
		{OrderStatusDelivered, OrderStatusClosed, true},
		{OrderStatusReturnRequested, OrderStatusClosed, true},

		// キャンセルできるのはcreated/paidだけ
		{OrderStatusSentToBrand, OrderStatusCancelled, false},
		{OrderStatusFulfilled, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},

		// 中間を飛ばす遷移は不可
		{OrderStatusPaid, OrderStatusDelivered, false},
		{OrderStatusCreated, OrderStatusFulfilled, false},

		// 逆行不可
		{OrderStatusDelivered, OrderStatusPaid, false},
		{OrderStatusClosed, OrderStatusDelivered, false},

		// 終端からはどこへも行けない
		{OrderStatusClosed, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusCreated, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestIsValidOrderStatus(t *testing.T) {
	assert.True(t, IsValidOrderStatus(OrderStatusPaid))
	assert.True(t, IsValidOrderStatus(OrderStatusReturnRequested))
	assert.False(t, IsValidOrderStatus("SHIPPED"))
	assert.False(t, IsValidOrderStatus(""))
}

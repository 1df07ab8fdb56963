package usecase_test

import (
	"context"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newAdminFixture() (*usecase.AdminOrderUsecase, *OrderRepoMock, *OrderItemRepoMock, *AuditRepoMock) {
	orders := new(OrderRepoMock)
	items := new(OrderItemRepoMock)
	audit := new(AuditRepoMock)

	tx := new(TxManagerMock)
	tx.Repos = &TxReposMock{orders: orders, orderItems: items}
	tx.On("WithinTx", mock.Anything).Return(nil)

	return usecase.NewAdminOrderUsecase(tx, audit), orders, items, audit
}

func TestAdminOrderUsecase_List_InvalidPage(t *testing.T) {
	uc, _, _, _ := newAdminFixture()

	_, _, err := uc.ListOrders(context.Background(), 1, usecase.ListAdminOrdersInput{Page: 0, Limit: 20})
	assertErrContains(t, err, "invalid page")
}

func TestAdminOrderUsecase_List_InvalidStatus(t *testing.T) {
	uc, _, _, _ := newAdminFixture()

	_, _, err := uc.ListOrders(context.Background(), 1, usecase.ListAdminOrdersInput{Page: 1, Limit: 20, Status: "SHIPPED"})
	assertErrContains(t, err, "invalid status")
}

func TestAdminOrderUsecase_List_Success(t *testing.T) {
	uc, orders, items, _ := newAdminFixture()

	orders.On("ListAdmin", mock.Anything, repo.AdminOrderListFilter{Page: 1, Limit: 20, Status: "paid"}).
		Return([]model.Order{
			{ID: 10, Status: model.OrderStatusPaid},
			{ID: 11, Status: model.OrderStatusPaid},
		}, int64(2), nil)
	items.On("ListByOrderID", mock.Anything, int64(10)).Return([]model.OrderItem{}, nil)
	items.On("ListByOrderID", mock.Anything, int64(11)).Return([]model.OrderItem{}, nil)

	outs, total, err := uc.ListOrders(context.Background(), 1, usecase.ListAdminOrdersInput{Page: 1, Limit: 20, Status: "paid"})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, 2, len(outs))

	orders.AssertExpectations(t)
	items.AssertExpectations(t)
}

func TestAdminOrderUsecase_AdvanceStatus_CancelBlocked(t *testing.T) {
	uc, _, _, _ := newAdminFixture()

	_, err := uc.AdvanceStatus(context.Background(), 1, 42, usecase.AdvanceStatusInput{NextStatus: "cancelled"})
	assertErrContains(t, err, "cancel endpoint")
}

func TestAdminOrderUsecase_AdvanceStatus_InvalidTransition(t *testing.T) {
	uc, orders, _, _ := newAdminFixture()

	orders.On("FindByID", mock.Anything, int64(42)).
		Return(model.Order{ID: 42, Status: model.OrderStatusPaid}, nil)

	// paid → delivered は中間を飛ばすので拒否
	_, err := uc.AdvanceStatus(context.Background(), 1, 42, usecase.AdvanceStatusInput{NextStatus: "delivered"})
	assertErrContains(t, err, "cannot move")

	orders.AssertNotCalled(t, "UpdateStatusIfCurrent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminOrderUsecase_AdvanceStatus_Success_WritesAuditLog(t *testing.T) {
	uc, orders, items, audit := newAdminFixture()

	orders.On("FindByID", mock.Anything, int64(42)).
		Return(model.Order{ID: 42, Status: model.OrderStatusFulfilled}, nil)
	orders.On("UpdateStatusIfCurrent", mock.Anything, int64(42), model.OrderStatusFulfilled, model.OrderStatusDelivered).
		Return(true, nil)
	orders.On("SetTrackingNumber", mock.Anything, int64(42), "TRACK-1").Return(nil)
	items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{}, nil)

	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.ActorUserID == 7 &&
			l.Action == model.AuditActionUpdateOrderStatus &&
			l.ResourceType == model.AuditResourceOrder &&
			l.ResourceID == 42
	})).Return(nil)

	out, err := uc.AdvanceStatus(context.Background(), 7, 42, usecase.AdvanceStatusInput{
		NextStatus:     "delivered",
		TrackingNumber: "TRACK-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "delivered", out.Status)
	assert.Equal(t, "TRACK-1", out.TrackingNumber)

	audit.AssertExpectations(t)
}

func TestAdminOrderUsecase_AdvanceStatus_LostRace(t *testing.T) {
	uc, orders, _, _ := newAdminFixture()

	orders.On("FindByID", mock.Anything, int64(42)).
		Return(model.Order{ID: 42, Status: model.OrderStatusPaid}, nil)
	orders.On("UpdateStatusIfCurrent", mock.Anything, int64(42), model.OrderStatusPaid, model.OrderStatusSentToBrand).
		Return(false, nil)

	_, err := uc.AdvanceStatus(context.Background(), 1, 42, usecase.AdvanceStatusInput{NextStatus: "sent_to_brand"})
	assertErrContains(t, err, "status changed")
}

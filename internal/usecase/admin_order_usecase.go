package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// AdminOrderUsecase はブランド/運用側の注文操作。
// ステータス遷移は遷移表でガードし、操作は監査ログに残す。
type AdminOrderUsecase struct {
	tx    repo.TransactionManager
	audit repo.AuditLogRepository
}

func NewAdminOrderUsecase(tx repo.TransactionManager, audit repo.AuditLogRepository) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, audit: audit}
}

type ListAdminOrdersInput struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
}

type AdvanceStatusInput struct {
	NextStatus     string
	TrackingNumber string
}

func (u *AdminOrderUsecase) ListOrders(ctx context.Context, adminID int64, in ListAdminOrdersInput) ([]OrderOutput, int64, error) {
	if adminID <= 0 {
		return nil, 0, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if in.Page < 1 {
		return nil, 0, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return nil, 0, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid limit")
	}
	if in.Status != "" && !model.IsValidOrderStatus(model.OrderStatus(in.Status)) {
		return nil, 0, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid status")
	}

	var (
		outs  []OrderOutput
		total int64
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, n, err := r.Orders().ListAdmin(ctx, repo.AdminOrderListFilter{
			Page:   in.Page,
			Limit:  in.Limit,
			Status: in.Status,
			UserID: in.UserID,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		total = n

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return nil, 0, err
	}
	return outs, total, nil
}

// AdvanceStatus は注文を次のステータスへ進める（配送系のみ）。
// キャンセルはここからは不可。返金が絡むのでCancelを使う。
func (u *AdminOrderUsecase) AdvanceStatus(ctx context.Context, adminID int64, orderID int64, in AdvanceStatusInput) (OrderOutput, error) {
	if adminID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	next := model.OrderStatus(in.NextStatus)
	if !model.IsValidOrderStatus(next) {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid status")
	}
	if next == model.OrderStatusCancelled {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "use the cancel endpoint")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, CodeOrderNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		if !model.CanTransition(o.Status, next) {
			return NewHTTPError(http.StatusConflict, CodeInvalidTransition, "cannot move from "+string(o.Status)+" to "+string(next))
		}

		ok, err := r.Orders().UpdateStatusIfCurrent(ctx, o.ID, o.Status, next)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, CodeInvalidTransition, "order status changed")
		}

		if in.TrackingNumber != "" {
			if err := r.Orders().SetTrackingNumber(ctx, o.ID, in.TrackingNumber); err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		before, _ := json.Marshal(map[string]string{"status": string(o.Status)})
		after, _ := json.Marshal(map[string]string{"status": string(next), "tracking_number": in.TrackingNumber})

		if err := u.audit.Create(ctx, model.AuditLog{
			ActorUserID:  adminID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    time.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		o.Status = next
		if in.TrackingNumber != "" {
			o.TrackingNumber = in.TrackingNumber
		}
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/payment"
	repo "app/internal/repository"

	"github.com/rs/zerolog"
)

// チェックアウト後のconversion通知先。
// 注文は既に確定しているので、ここの失敗は注文を巻き戻さない。
type ReferralTracker interface {
	RecordConversion(ctx context.Context, code string, orderID int64, purchaserID int64, amountCents int64) error
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	addresses repo.AddressRepository
	gateway   payment.Gateway
	tracker   ReferralTracker
	cfg       config.Commerce
	logger    zerolog.Logger
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	addresses repo.AddressRepository,
	gateway payment.Gateway,
	tracker ReferralTracker,
	cfg config.Commerce,
	logger zerolog.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:        tx,
		addresses: addresses,
		gateway:   gateway,
		tracker:   tracker,
		cfg:       cfg,
		logger:    logger,
	}
}

type CheckoutInput struct {
	PaymentMethodToken string
	ShippingAddressID  int64
	BillingAddressID   int64
	ReferralCode       string
	IdempotencyKey     string
}

// 同じキーの再送は同じ中身でなければならない。中身の同一性はこのハッシュで判定する。
func (in CheckoutInput) fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s",
		strings.TrimSpace(in.PaymentMethodToken),
		in.ShippingAddressID,
		in.BillingAddressID,
		in.ReferralCode,
	)))
	return hex.EncodeToString(sum[:])
}

type OrderItemOutput struct {
	ProductID  int64  `json:"product_id"`
	VariantSKU string `json:"variant_sku"`
	Name       string `json:"name"`
	SizeLabel  string `json:"size_label"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int64  `json:"quantity"`
}

type OrderOutput struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"user_id"`
	Status         string            `json:"status"`
	Subtotal       int64             `json:"subtotal"`
	Tax            int64             `json:"tax"`
	Shipping       int64             `json:"shipping"`
	Total          int64             `json:"total"`
	Currency       string            `json:"currency"`
	PaymentRef     string            `json:"payment_ref,omitempty"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Items          []OrderItemOutput `json:"items"`
}

// Checkout はカートから注文を作る。
// 流れ: スナップショット → PSPキャプチャ → 注文保存＋カートクリア（1トランザクション）。
// キャプチャ中はDBトランザクションもロックも持たない。
func (u *OrderUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid idempotency_key")
	}
	if strings.TrimSpace(in.PaymentMethodToken) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid payment_token")
	}
	if in.ShippingAddressID <= 0 || in.BillingAddressID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid address_id")
	}

	//住所の存在確認＋所有チェック（他人の住所なら403）
	for _, addrID := range []int64{in.ShippingAddressID, in.BillingAddressID} {
		addr, err := u.addresses.FindByID(ctx, addrID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return OrderOutput{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "address not found")
			}
			return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if addr.UserID != userID {
			return OrderOutput{}, NewHTTPError(http.StatusForbidden, CodeForbidden, "forbidden")
		}
	}

	fingerprint := in.fingerprint()

	//フェーズ1: 既存注文チェックとスナップショット作成
	var (
		existing    OrderOutput
		found       bool
		cartID      int64
		currency    string
		cartItemIDs []int64
		orderItems  []model.OrderItem
		totals      CartTotals
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキー＋同じ中身なら同じ結果。中身が違えば再利用とみなして409
		ex, ok, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if ok {
			if ex.RequestFingerprint != "" && ex.RequestFingerprint != fingerprint {
				return NewHTTPError(http.StatusConflict, CodeIdempotencyConflict, "idempotency key reused with a different payload")
			}
			items, err := r.OrderItems().ListByOrderID(ctx, ex.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			existing = toOrderOutput(ex, items)
			found = true
			return nil
		}

		cart, err := r.Carts().FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusUnprocessableEntity, CodeCartEmpty, "cart is empty")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		cartID = cart.ID
		currency = cart.Currency

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusUnprocessableEntity, CodeCartEmpty, "cart is empty")
		}

		//ここで価格・名前をディープコピー。以降カタログが変わっても注文は変わらない
		var subtotal int64 = 0
		orderItems = make([]model.OrderItem, 0, len(cartItems))
		cartItemIDs = make([]int64, 0, len(cartItems))

		for _, ci := range cartItems {
			cartItemIDs = append(cartItemIDs, ci.ID)
			v, err := r.Variants().FindByID(ctx, ci.VariantID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusConflict, CodeVariantNotFound, "variant unavailable")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}

			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
				return NewHTTPError(http.StatusConflict, CodeVariantNotFound, "product unavailable")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}

			orderItems = append(orderItems, model.OrderItem{
				ProductID:         ci.ProductID,
				VariantID:         ci.VariantID,
				SKUSnapshot:       v.SKU,
				NameSnapshot:      p.Name,
				SizeLabelSnapshot: v.Label,
				UnitPriceCents:    v.PriceCents,
				Currency:          v.Currency,
				Quantity:          ci.Quantity,
				Recommended:       ci.Recommended,
				FitSummary:        ci.FitSummary,
			})

			subtotal += v.PriceCents * ci.Quantity
		}

		totals = ComputeTotals(subtotal, currency, u.cfg)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	if found {
		return existing, nil
	}

	//フェーズ2: PSPキャプチャ。キーはPSPへそのまま転送される
	capture, err := u.gateway.Capture(ctx, payment.CaptureRequest{
		AmountCents:        totals.Total,
		Currency:           currency,
		PaymentMethodToken: in.PaymentMethodToken,
		IdempotencyKey:     key,
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(userID, 10),
			"cart_id": strconv.FormatInt(cartID, 10),
			"rid":     in.ReferralCode,
		},
	})
	if err != nil {
		if errors.Is(err, payment.ErrDeclined) {
			//確定NG。注文は作らない
			return OrderOutput{}, NewHTTPError(http.StatusPaymentRequired, CodePaymentDeclined, "payment declined")
		}
		if errors.Is(err, payment.ErrUnavailable) {
			//課金されたか不明。同じキーで再試行してもらう
			return OrderOutput{}, NewHTTPError(http.StatusServiceUnavailable, CodePaymentUnavailable, "payment gateway unavailable, retry with the same idempotency key")
		}
		return OrderOutput{}, NewHTTPError(http.StatusBadGateway, CodeInternal, "payment error")
	}

	//フェーズ3: 注文保存＋明細＋在庫減算＋カートクリアを1トランザクションで
	var out OrderOutput
	createdNew := false

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//キャプチャ中に同じキーの並行リクエストが先に確定した場合は同じ結果を返す
		ex, ok, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if ok {
			if ex.RequestFingerprint != "" && ex.RequestFingerprint != fingerprint {
				return NewHTTPError(http.StatusConflict, CodeIdempotencyConflict, "idempotency key reused with a different payload")
			}
			items, err := r.OrderItems().ListByOrderID(ctx, ex.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			out = toOrderOutput(ex, items)
			return nil
		}

		now := time.Now()
		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:             userID,
			Status:             model.OrderStatusPaid,
			SubtotalCents:      totals.Subtotal,
			TaxCents:           totals.Tax,
			ShippingCents:      totals.Shipping,
			TotalCents:         totals.Total,
			Currency:           currency,
			ShippingAddressID:  in.ShippingAddressID,
			BillingAddressID:   in.BillingAddressID,
			PaymentRef:         capture.PaymentRef,
			ReferralCode:       in.ReferralCode,
			IdempotencyKey:     key,
			RequestFingerprint: fingerprint,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err != nil {
			//競合（同時に同じキーが入った等）はもう一回検索して同じ結果を返す
			ex2, found2, err2 := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err2 == nil && found2 {
				if ex2.RequestFingerprint != "" && ex2.RequestFingerprint != fingerprint {
					return NewHTTPError(http.StatusConflict, CodeIdempotencyConflict, "idempotency key reused with a different payload")
				}
				items2, err3 := r.OrderItems().ListByOrderID(ctx, ex2.ID)
				if err3 != nil {
					return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
				}
				out = toOrderOutput(ex2, items2)
				return nil
			}
			return NewHTTPError(http.StatusConflict, CodeIdempotencyConflict, "idempotency conflict")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		//在庫減算はベストエフォート。キャプチャ済みの注文はここで失敗させない
		for _, it := range orderItems {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.VariantID, it.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			if !ok {
				u.logger.Warn().
					Int64("order_id", orderID).
					Int64("variant_id", it.VariantID).
					Int64("qty", it.Quantity).
					Msg("stock went negative between cart and checkout")
			}
		}

		//スナップショットした明細だけ消す。キャプチャ中に追加された明細は課金していないので残す
		if err := r.CartItems().DeleteByIDs(ctx, cartID, cartItemIDs); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		created := model.Order{
			ID:                orderID,
			UserID:            userID,
			Status:            model.OrderStatusPaid,
			SubtotalCents:     totals.Subtotal,
			TaxCents:          totals.Tax,
			ShippingCents:     totals.Shipping,
			TotalCents:        totals.Total,
			Currency:          currency,
			PaymentRef:        capture.PaymentRef,
			ReferralCode:      in.ReferralCode,
			CreatedAt:         now,
			ShippingAddressID: in.ShippingAddressID,
			BillingAddressID:  in.BillingAddressID,
		}
		out = toOrderOutput(created, orderItems)
		createdNew = true
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	//conversion通知はベストエフォート。失敗してもログだけ残して注文はそのまま
	if createdNew && in.ReferralCode != "" {
		if err := u.tracker.RecordConversion(ctx, in.ReferralCode, out.ID, userID, out.Total); err != nil {
			u.logger.Warn().
				Err(err).
				Int64("order_id", out.ID).
				Str("rid", in.ReferralCode).
				Msg("referral conversion not recorded")
		}
	}

	return out, nil
}

// Cancel は注文キャンセル。created/paidのみ。
// paidは先に返金し、返金が通ったときだけcancelledへ動かす。
func (u *OrderUsecase) Cancel(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	var (
		order model.Order
		items []model.OrderItem
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, CodeOrderNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, CodeOrderNotFound, "not found")
		}

		its, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		order = o
		items = its
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	switch order.Status {
	case model.OrderStatusCreated:
		//未課金なのでそのままキャンセル
		if err := u.finalizeCancel(ctx, userID, order, items); err != nil {
			return OrderOutput{}, err
		}

	case model.OrderStatusPaid:
		//返金の直前にもう一度ステータスを見る。管理側が先に進めていたら返金しない
		var stillPaid bool
		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			o, err := r.Orders().FindByID(ctx, order.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			stillPaid = o.Status == model.OrderStatusPaid
			return nil
		})
		if err != nil {
			return OrderOutput{}, err
		}
		if !stillPaid {
			return OrderOutput{}, NewHTTPError(http.StatusConflict, CodeInvalidTransition, "order status changed")
		}

		//返金が先。失敗したら注文はpaidのまま、オペレーター対応に回す
		if _, err := u.gateway.Refund(ctx, order.PaymentRef); err != nil {
			u.logger.Error().
				Err(err).
				Int64("order_id", order.ID).
				Str("payment_ref", order.PaymentRef).
				Msg("refund failed, order stays paid")
			return OrderOutput{}, NewHTTPError(http.StatusBadGateway, CodeRefundFailed, "refund failed")
		}

		if err := u.finalizeCancel(ctx, userID, order, items); err != nil {
			//返金は済んでいるのにステータスが先に動いた。手動リカバリが必要
			if he, ok := AsHTTPError(err); ok && he.Status == http.StatusConflict {
				u.logger.Error().
					Int64("order_id", order.ID).
					Str("payment_ref", order.PaymentRef).
					Msg("refund issued but order moved past paid, manual review required")
			}
			return OrderOutput{}, err
		}

	default:
		return OrderOutput{}, NewHTTPError(http.StatusConflict, CodeInvalidTransition, "order cannot be cancelled in status "+string(order.Status))
	}

	order.Status = model.OrderStatusCancelled
	return toOrderOutput(order, items), nil
}

// ステータスをcancelledへ動かして在庫を戻す。
func (u *OrderUsecase) finalizeCancel(ctx context.Context, userID int64, order model.Order, items []model.OrderItem) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().UpdateStatusIfCurrent(ctx, order.ID, order.Status, model.OrderStatusCancelled)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if !ok {
			//並行で先にステータスが動いていた
			return NewHTTPError(http.StatusConflict, CodeInvalidTransition, "order status changed")
		}

		//在庫戻し＋調整履歴
		for _, it := range items {
			if err := r.Inventory().IncreaseStock(ctx, it.VariantID, it.Quantity); err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				VariantID:   it.VariantID,
				ActorUserID: userID,
				Delta:       it.Quantity,
				Reason:      "order_cancelled",
			}); err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
		}

		return nil
	})
}

// RequestReturn は配達済みの注文の返品申請。
func (u *OrderUsecase) RequestReturn(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
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
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, CodeOrderNotFound, "not found")
		}

		if !model.CanTransition(o.Status, model.OrderStatusReturnRequested) {
			return NewHTTPError(http.StatusConflict, CodeInvalidTransition, "order cannot be returned in status "+string(o.Status))
		}

		ok, err := r.Orders().UpdateStatusIfCurrent(ctx, o.ID, o.Status, model.OrderStatusReturnRequested)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, CodeInvalidTransition, "order status changed")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		o.Status = model.OrderStatusReturnRequested
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

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
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
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
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, CodeOrderNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:  it.ProductID,
			VariantSKU: it.SKUSnapshot,
			Name:       it.NameSnapshot,
			SizeLabel:  it.SizeLabelSnapshot,
			UnitPrice:  it.UnitPriceCents,
			Quantity:   it.Quantity,
		})
	}

	return OrderOutput{
		ID:             o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		Subtotal:       o.SubtotalCents,
		Tax:            o.TaxCents,
		Shipping:       o.ShippingCents,
		Total:          o.TotalCents,
		Currency:       o.Currency,
		PaymentRef:     o.PaymentRef,
		TrackingNumber: o.TrackingNumber,
		CreatedAt:      o.CreatedAt,
		Items:          outItems,
	}
}

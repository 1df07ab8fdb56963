package usecase

import (
	"context"
	"net/http"
	"strings"

	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"
)

// CartUsecase は /cart の業務ロジックです。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
	variantRepo  repo.VariantRepository
	cfg          config.Commerce
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
	variantRepo repo.VariantRepository,
	cfg config.Commerce,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
		variantRepo:  variantRepo,
		cfg:          cfg,
	}
}

// priceはチェックアウト前なのでバリアントの現在価格を返す。
type CartItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	VariantSKU  string `json:"variant_sku"`
	Name        string `json:"name"`
	SizeLabel   string `json:"size_label"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
	Recommended bool   `json:"recommended"`
	FitSummary  string `json:"fit_summary,omitempty"`
}

type CartTotals struct {
	Subtotal int64  `json:"subtotal"`
	Tax      int64  `json:"tax"`
	Shipping int64  `json:"shipping"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type CartResponse struct {
	CartID int64              `json:"cart_id"`
	Items  []CartItemResponse `json:"items"`
	Totals CartTotals         `json:"totals"`
}

type AddItemInput struct {
	ProductID   int64
	VariantSKU  string
	Quantity    int64
	Recommended bool
	FitSummary  string
}

type UpdateItemInput struct {
	//nilなら変更なし。0以下は削除扱い
	Quantity *int64
	//nilまたは空なら変更なし
	VariantSKU *string
}

// GetCart はカート取得（無ければ作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return u.buildCartResponse(ctx, cart)
}

// AddItem はカートに追加（同一バリアントは数量加算、上限で頭打ち）。
func (u *CartUsecase) AddItem(ctx context.Context, userID int64, in AddItemInput) (CartItemResponse, error) {
	if userID <= 0 {
		return CartItemResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid product_id")
	}
	if in.Quantity < 1 || in.Quantity > u.cfg.MaxQuantityPerItem {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, CodeInvalidQuantity, "invalid quantity")
	}
	if strings.TrimSpace(in.VariantSKU) == "" {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid variant_sku")
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid product")
	}
	if err != nil {
		return CartItemResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if !p.IsActive {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid product")
	}

	//SKUがその商品のものか確認
	v, err := u.variantRepo.FindByProductAndSKU(ctx, in.ProductID, in.VariantSKU)
	if err == repo.ErrNotFound {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, CodeVariantNotFound, "variant not found")
	}
	if err != nil {
		return CartItemResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	//在庫の事前チェック（確定はキャプチャ時ではなくここでは行わない）
	if in.Quantity > v.Stock {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, CodeInsufficientStock, "insufficient stock")
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartItemResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	// Upsert（同一バリアントは加算、上限で頭打ち）
	item, err := u.cartItemRepo.UpsertByCartAndVariant(ctx, model.CartItem{
		CartID:      cart.ID,
		ProductID:   in.ProductID,
		VariantID:   v.ID,
		Quantity:    in.Quantity,
		Recommended: in.Recommended,
		FitSummary:  in.FitSummary,
	}, u.cfg.MaxQuantityPerItem)
	if err != nil {
		return CartItemResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return CartItemResponse{
		ID:          item.ID,
		ProductID:   p.ID,
		VariantSKU:  v.SKU,
		Name:        p.Name,
		SizeLabel:   v.Label,
		UnitPrice:   v.PriceCents,
		Quantity:    item.Quantity,
		Recommended: item.Recommended,
		FitSummary:  item.FitSummary,
	}, nil
}

// UpdateItem は数量・バリアント変更。数量0以下は削除として扱う。
func (u *CartUsecase) UpdateItem(ctx context.Context, userID int64, cartItemID int64, in UpdateItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if !owned {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, CodeItemNotFound, "not found")
	}

	//数量0以下は削除（エラーにしない）
	if in.Quantity != nil && *in.Quantity <= 0 {
		return u.RemoveItem(ctx, userID, cartItemID)
	}

	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, CodeItemNotFound, "not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	variant, err := u.variantRepo.FindByID(ctx, item.VariantID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	//バリアント変更は新しいバリアントで在庫を取り直す
	if in.VariantSKU != nil && strings.TrimSpace(*in.VariantSKU) != "" && *in.VariantSKU != variant.SKU {
		newVariant, err := u.variantRepo.FindByProductAndSKU(ctx, item.ProductID, *in.VariantSKU)
		if err == repo.ErrNotFound {
			return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeVariantNotFound, "variant not found")
		}
		if err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		variant = newVariant

		if err := u.cartItemRepo.UpdateVariant(ctx, cartItemID, newVariant.ID); err != nil {
			if err == repo.ErrNotFound {
				return CartResponse{}, NewHTTPError(http.StatusNotFound, CodeItemNotFound, "not found")
			}
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
	}

	if in.Quantity != nil {
		qty := *in.Quantity
		if qty > u.cfg.MaxQuantityPerItem {
			qty = u.cfg.MaxQuantityPerItem
		}
		if qty > variant.Stock {
			return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeInsufficientStock, "insufficient stock")
		}

		if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, qty); err != nil {
			if err == repo.ErrNotFound {
				return CartResponse{}, NewHTTPError(http.StatusNotFound, CodeItemNotFound, "not found")
			}
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return u.buildCartResponse(ctx, cart)
}

// RemoveItem は明細削除
func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if !owned {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, CodeItemNotFound, "not found")
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if err == repo.ErrNotFound {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, CodeItemNotFound, "not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return u.buildCartResponse(ctx, cart)
}

// 明細をまとめてCartResponseを作る。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cart model.Cart) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	respItems := make([]CartItemResponse, 0, len(items))
	var subtotal int64 = 0

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err != nil || !p.IsActive {
			continue
		}

		v, err := u.variantRepo.FindByID(ctx, it.VariantID)
		if err != nil {
			continue
		}

		respItems = append(respItems, CartItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			VariantSKU:  v.SKU,
			Name:        p.Name,
			SizeLabel:   v.Label,
			UnitPrice:   v.PriceCents,
			Quantity:    it.Quantity,
			Recommended: it.Recommended,
			FitSummary:  it.FitSummary,
		})

		subtotal += v.PriceCents * it.Quantity
	}

	return CartResponse{
		CartID: cart.ID,
		Items:  respItems,
		Totals: ComputeTotals(subtotal, cart.Currency, u.cfg),
	}, nil
}

// ComputeTotals は小計から税・送料・合計を出す。
// 税は整数切り捨て、送料は閾値以上で無料。
func ComputeTotals(subtotal int64, currency string, cfg config.Commerce) CartTotals {
	tax := subtotal * cfg.TaxRateBasisPoints / 10000

	shipping := cfg.ShippingFeeCents
	if subtotal >= cfg.FreeShippingThresholdCents {
		shipping = 0
	}

	return CartTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping,
		Currency: currency,
	}
}

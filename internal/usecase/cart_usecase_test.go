package usecase_test

import (
	"context"
	"testing"

	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newCartUsecase() (*usecase.CartUsecase, *CartRepoMock, *CartItemRepoMock, *ProductRepoMock, *VariantRepoMock) {
	cartRepo := new(CartRepoMock)
	itemRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)
	variantRepo := new(VariantRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, itemRepo, productRepo, variantRepo, config.DefaultCommerce())
	return uc, cartRepo, itemRepo, productRepo, variantRepo
}

// =====================
// ComputeTotals
// =====================

func TestComputeTotals_TaxTruncatesAndShippingApplies(t *testing.T) {
	cfg := config.DefaultCommerce()

	// 4000 * 825 / 10000 = 330（切り捨て）
	totals := usecase.ComputeTotals(4000, "USD", cfg)
	assert.Equal(t, int64(4000), totals.Subtotal)
	assert.Equal(t, int64(330), totals.Tax)
	assert.Equal(t, int64(1200), totals.Shipping)
	assert.Equal(t, int64(5530), totals.Total)
	assert.Equal(t, "USD", totals.Currency)
}

func TestComputeTotals_FreeShippingAtThreshold(t *testing.T) {
	cfg := config.DefaultCommerce()

	totals := usecase.ComputeTotals(10000, "USD", cfg)
	assert.Equal(t, int64(825), totals.Tax)
	assert.Equal(t, int64(0), totals.Shipping)
	assert.Equal(t, int64(10825), totals.Total)
}

func TestComputeTotals_TruncationIsNotRounding(t *testing.T) {
	cfg := config.DefaultCommerce()

	// 999 * 825 / 10000 = 82.41... → 82
	totals := usecase.ComputeTotals(999, "USD", cfg)
	assert.Equal(t, int64(82), totals.Tax)
}

// =====================
// AddItem
// =====================

func TestCartUsecase_AddItem_InvalidQuantity(t *testing.T) {
	uc, _, _, _, _ := newCartUsecase()

	_, err := uc.AddItem(context.Background(), 1, usecase.AddItemInput{
		ProductID: 1, VariantSKU: "SKU-1", Quantity: 0,
	})
	assertErrContains(t, err, "invalid quantity")

	// 上限5を超える
	_, err = uc.AddItem(context.Background(), 1, usecase.AddItemInput{
		ProductID: 1, VariantSKU: "SKU-1", Quantity: 6,
	})
	assertErrContains(t, err, "invalid quantity")
}

func TestCartUsecase_AddItem_VariantNotFound(t *testing.T) {
	uc, _, _, productRepo, variantRepo := newCartUsecase()

	productRepo.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, IsActive: true}, nil)
	variantRepo.On("FindByProductAndSKU", mock.Anything, int64(1), "SKU-X").Return(model.ProductVariant{}, repo.ErrNotFound)

	_, err := uc.AddItem(context.Background(), 1, usecase.AddItemInput{
		ProductID: 1, VariantSKU: "SKU-X", Quantity: 1,
	})
	assertErrContains(t, err, "variant not found")
}

func TestCartUsecase_AddItem_InsufficientStock(t *testing.T) {
	uc, _, _, productRepo, variantRepo := newCartUsecase()

	productRepo.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, IsActive: true}, nil)
	variantRepo.On("FindByProductAndSKU", mock.Anything, int64(1), "SKU-1").
		Return(model.ProductVariant{ID: 7, ProductID: 1, SKU: "SKU-1", Stock: 2}, nil)

	_, err := uc.AddItem(context.Background(), 1, usecase.AddItemInput{
		ProductID: 1, VariantSKU: "SKU-1", Quantity: 3,
	})
	assertErrContains(t, err, "insufficient stock")
}

func TestCartUsecase_AddItem_InactiveProductRejected(t *testing.T) {
	uc, _, _, productRepo, _ := newCartUsecase()

	productRepo.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, IsActive: false}, nil)

	_, err := uc.AddItem(context.Background(), 1, usecase.AddItemInput{
		ProductID: 1, VariantSKU: "SKU-1", Quantity: 1,
	})
	assertErrContains(t, err, "invalid product")
}

func TestCartUsecase_AddItem_ClampsAtMaxQuantity(t *testing.T) {
	uc, cartRepo, itemRepo, productRepo, variantRepo := newCartUsecase()

	productRepo.On("FindByID", mock.Anything, int64(1)).
		Return(model.Product{ID: 1, Name: "Tee", IsActive: true}, nil)
	variantRepo.On("FindByProductAndSKU", mock.Anything, int64(1), "SKU-1").
		Return(model.ProductVariant{ID: 7, ProductID: 1, SKU: "SKU-1", Label: "M", PriceCents: 2000, Stock: 10}, nil)
	cartRepo.On("GetOrCreateByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 3, UserID: 1, Currency: "USD"}, nil)

	// 既に4個入っていて3個追加 → リポジトリ側で5に頭打ち
	itemRepo.On("UpsertByCartAndVariant", mock.Anything, mock.Anything, int64(5)).
		Return(model.CartItem{ID: 11, CartID: 3, ProductID: 1, VariantID: 7, Quantity: 5}, nil)

	out, err := uc.AddItem(context.Background(), 1, usecase.AddItemInput{
		ProductID: 1, VariantSKU: "SKU-1", Quantity: 3,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(5), out.Quantity)
	assert.Equal(t, int64(2000), out.UnitPrice)
	assert.Equal(t, "M", out.SizeLabel)

	itemRepo.AssertExpectations(t)
}

// =====================
// UpdateItem / RemoveItem
// =====================

func TestCartUsecase_UpdateItem_ZeroQuantityRemoves(t *testing.T) {
	uc, cartRepo, itemRepo, _, _ := newCartUsecase()

	itemRepo.On("IsOwnedByUser", mock.Anything, int64(11), int64(1)).Return(true, nil)
	itemRepo.On("DeleteByID", mock.Anything, int64(11)).Return(nil)
	cartRepo.On("FindByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 3, Currency: "USD"}, nil)
	itemRepo.On("ListByCartID", mock.Anything, int64(3)).Return([]model.CartItem{}, nil)

	qty := int64(0)
	out, err := uc.UpdateItem(context.Background(), 1, 11, usecase.UpdateItemInput{Quantity: &qty})
	assert.NoError(t, err)
	assert.Equal(t, 0, len(out.Items))

	itemRepo.AssertCalled(t, "DeleteByID", mock.Anything, int64(11))
}

func TestCartUsecase_UpdateItem_ForeignItemHidden(t *testing.T) {
	uc, _, itemRepo, _, _ := newCartUsecase()

	itemRepo.On("IsOwnedByUser", mock.Anything, int64(11), int64(2)).Return(false, nil)

	qty := int64(2)
	_, err := uc.UpdateItem(context.Background(), 2, 11, usecase.UpdateItemInput{Quantity: &qty})
	assertErrContains(t, err, "not found")
}

func TestCartUsecase_UpdateItem_QuantityOverStock(t *testing.T) {
	uc, _, itemRepo, _, variantRepo := newCartUsecase()

	itemRepo.On("IsOwnedByUser", mock.Anything, int64(11), int64(1)).Return(true, nil)
	itemRepo.On("FindByID", mock.Anything, int64(11)).
		Return(model.CartItem{ID: 11, CartID: 3, ProductID: 1, VariantID: 7, Quantity: 1}, nil)
	variantRepo.On("FindByID", mock.Anything, int64(7)).
		Return(model.ProductVariant{ID: 7, SKU: "SKU-1", Stock: 2}, nil)

	qty := int64(4)
	_, err := uc.UpdateItem(context.Background(), 1, 11, usecase.UpdateItemInput{Quantity: &qty})
	assertErrContains(t, err, "insufficient stock")
}

func TestCartUsecase_RemoveItem_ForeignItemHidden(t *testing.T) {
	uc, _, itemRepo, _, _ := newCartUsecase()

	itemRepo.On("IsOwnedByUser", mock.Anything, int64(11), int64(2)).Return(false, nil)

	_, err := uc.RemoveItem(context.Background(), 2, 11)
	assertErrContains(t, err, "not found")
}

// =====================
// GetCart
// =====================

func TestCartUsecase_GetCart_SkipsInactiveProducts(t *testing.T) {
	uc, cartRepo, itemRepo, productRepo, variantRepo := newCartUsecase()

	cartRepo.On("GetOrCreateByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 3, Currency: "USD"}, nil)
	itemRepo.On("ListByCartID", mock.Anything, int64(3)).Return([]model.CartItem{
		{ID: 11, CartID: 3, ProductID: 1, VariantID: 7, Quantity: 2},
		{ID: 12, CartID: 3, ProductID: 2, VariantID: 8, Quantity: 1},
	}, nil)

	productRepo.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Tee", IsActive: true}, nil)
	// 非公開になった商品は明細から消える
	productRepo.On("FindByID", mock.Anything, int64(2)).Return(model.Product{ID: 2, IsActive: false}, nil)
	variantRepo.On("FindByID", mock.Anything, int64(7)).
		Return(model.ProductVariant{ID: 7, SKU: "SKU-1", Label: "M", PriceCents: 2000}, nil)

	out, err := uc.GetCart(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(out.Items))
	assert.Equal(t, int64(4000), out.Totals.Subtotal)
	assert.Equal(t, int64(330), out.Totals.Tax)
	assert.Equal(t, int64(1200), out.Totals.Shipping)
}

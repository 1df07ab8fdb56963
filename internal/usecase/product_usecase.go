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

type ProductUsecase struct {
	productRepo   repo.ProductRepository
	variantRepo   repo.VariantRepository
	inventoryRepo repo.InventoryRepository
	audit         repo.AuditLogRepository
}

func NewProductUsecase(
	productRepo repo.ProductRepository,
	variantRepo repo.VariantRepository,
	inventoryRepo repo.InventoryRepository,
	audit repo.AuditLogRepository,
) *ProductUsecase {
	return &ProductUsecase{
		productRepo:   productRepo,
		variantRepo:   variantRepo,
		inventoryRepo: inventoryRepo,
		audit:         audit,
	}
}

type ProductDetailResponse struct {
	Product  model.Product          `json:"product"`
	Variants []model.ProductVariant `json:"variants"`
}

func (u *ProductUsecase) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	if q.Page < 1 {
		return nil, 0, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid page")
	}
	if q.Limit < 1 || q.Limit > 100 {
		return nil, 0, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid limit")
	}
	if q.MinPrice != nil && *q.MinPrice < 0 {
		return nil, 0, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid min_price")
	}
	if q.MaxPrice != nil && *q.MaxPrice < 0 {
		return nil, 0, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid max_price")
	}

	products, total, err := u.productRepo.ListPublic(ctx, q)
	if err != nil {
		return nil, 0, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return products, total, nil
}

func (u *ProductUsecase) GetDetail(ctx context.Context, id int64) (ProductDetailResponse, error) {
	if id <= 0 {
		return ProductDetailResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	p, err := u.productRepo.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductDetailResponse{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	if err != nil {
		return ProductDetailResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if !p.IsActive {
		return ProductDetailResponse{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}

	variants, err := u.variantRepo.ListByProductID(ctx, p.ID)
	if err != nil {
		return ProductDetailResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return ProductDetailResponse{Product: p, Variants: variants}, nil
}

// SetVariantStock は管理者による在庫の直接更新。調整履歴と監査ログを残す。
func (u *ProductUsecase) SetVariantStock(ctx context.Context, adminID int64, variantID int64, newStock int64, reason string) error {
	if adminID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if variantID <= 0 {
		return NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}
	if newStock < 0 {
		return NewHTTPError(http.StatusBadRequest, CodeValidation, "stock must be >= 0")
	}
	if reason == "" {
		reason = "manual_adjustment"
	}

	v, err := u.variantRepo.FindByID(ctx, variantID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, CodeVariantNotFound, "variant not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	if err := u.inventoryRepo.SetStock(ctx, v.ID, newStock); err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	if err := u.inventoryRepo.CreateAdjustment(ctx, model.InventoryAdjustment{
		VariantID:   v.ID,
		ActorUserID: adminID,
		Delta:       newStock - v.Stock,
		Reason:      reason,
	}); err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	before, _ := json.Marshal(map[string]int64{"stock": v.Stock})
	after, _ := json.Marshal(map[string]int64{"stock": newStock})

	if err := u.audit.Create(ctx, model.AuditLog{
		ActorUserID:  adminID,
		Action:       model.AuditActionUpdateStock,
		ResourceType: model.AuditResourceVariant,
		ResourceID:   v.ID,
		BeforeJSON:   string(before),
		AfterJSON:    string(after),
		CreatedAt:    time.Now(),
	}); err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return nil
}

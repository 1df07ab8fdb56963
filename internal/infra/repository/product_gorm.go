package repository

import (
	"context"
	"errors"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// 公開中の商品だけを一覧
func (r *ProductGormRepository) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Product{}).Where("is_active = ?", true)

	if s := strings.TrimSpace(q.Q); s != "" {
		query = query.Where("name ILIKE ?", "%"+s+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "id desc"
	if q.Sort == "name" {
		order = "name asc"
	}

	offset := (q.Page - 1) * q.Limit
	if err := query.Order(order).Offset(offset).Limit(q.Limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&p).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

type VariantGormRepository struct {
	db *gorm.DB
}

func NewVariantGormRepository(db *gorm.DB) *VariantGormRepository {
	return &VariantGormRepository{db: db}
}

func (r *VariantGormRepository) FindByID(ctx context.Context, variantID int64) (model.ProductVariant, error) {
	var v model.ProductVariant

	err := r.db.WithContext(ctx).
		Where("id = ?", variantID).
		First(&v).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.ProductVariant{}, err
	}
	return v, nil
}

func (r *VariantGormRepository) FindByProductAndSKU(ctx context.Context, productID int64, sku string) (model.ProductVariant, error) {
	var v model.ProductVariant

	err := r.db.WithContext(ctx).
		Where("product_id = ? AND sku = ?", productID, sku).
		First(&v).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.ProductVariant{}, err
	}
	return v, nil
}

func (r *VariantGormRepository) FindBySKU(ctx context.Context, sku string) (model.ProductVariant, error) {
	var v model.ProductVariant

	err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		First(&v).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.ProductVariant{}, err
	}
	return v, nil
}

func (r *VariantGormRepository) ListByProductID(ctx context.Context, productID int64) ([]model.ProductVariant, error) {
	var variants []model.ProductVariant

	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id asc").
		Find(&variants).Error; err != nil {
		return []model.ProductVariant{}, err
	}

	return variants, nil
}

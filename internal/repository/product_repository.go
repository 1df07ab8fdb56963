package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// 一覧検索
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
}

// バリアント(SKU)の取得。
type VariantRepository interface {
	FindByID(ctx context.Context, variantID int64) (model.ProductVariant, error)
	//SKUは商品をまたいで一意だが、商品との対応も確認する
	FindByProductAndSKU(ctx context.Context, productID int64, sku string) (model.ProductVariant, error)
	FindBySKU(ctx context.Context, sku string) (model.ProductVariant, error)
	ListByProductID(ctx context.Context, productID int64) ([]model.ProductVariant, error)
}

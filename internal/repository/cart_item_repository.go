package repository

import (
	"context"

	"app/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 同一バリアントは加算。maxQtyで頭打ちにする
	UpsertByCartAndVariant(ctx context.Context, item model.CartItem, maxQty int64) (model.CartItem, error)
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	UpdateVariant(ctx context.Context, cartItemID int64, variantID int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	//チェックアウトが確定した明細だけをまとめて消す。カート自体は残す
	DeleteByIDs(ctx context.Context, cartID int64, cartItemIDs []int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error)
}

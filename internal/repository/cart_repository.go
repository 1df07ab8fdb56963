package repository

import (
	"context"

	"app/internal/domain/model"
)

type CartRepository interface {
	//ユーザーのカートを取得、無ければ作る（1ユーザー1カート）
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)
}

package repository

import (
	"app/internal/domain/model"
	repo "app/internal/repository"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartItemGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartItemGormRepository(db *gorm.DB) *CartItemGormRepository {
	return &CartItemGormRepository{db: db}
}

// カート明細を一覧取得
func (r *CartItemGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

// 同一バリアントは数量加算。maxQtyで頭打ち。
// 行ロックで取ってから更新するので、同時追加でも加算が消えない。
func (r *CartItemGormRepository) UpsertByCartAndVariant(ctx context.Context, item model.CartItem, maxQty int64) (model.CartItem, error) {

	if item.Quantity <= 0 {
		return model.CartItem{}, errors.New("invalid quantity")
	}

	var result model.CartItem

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.CartItem

		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ? AND variant_id = ?", item.CartID, item.VariantID).
			First(&existing).Error

		if err == nil {
			// 既存ありだったら数量を増やして頭打ち
			newQty := existing.Quantity + item.Quantity
			if newQty > maxQty {
				newQty = maxQty
			}

			res := tx.Model(&model.CartItem{}).
				Where("id = ?", existing.ID).
				Update("quantity", newQty)

			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repo.ErrNotFound
			}

			existing.Quantity = newQty
			result = existing
			return nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		//無い場合は新規作成
		now := time.Now()
		item.CreatedAt = now
		item.UpdatedAt = now

		if err := tx.Create(&item).Error; err != nil {
			return err
		}

		result = item
		return nil
	})

	if err != nil {
		return model.CartItem{}, err
	}
	return result, nil
}

// 明細の数量を更新
func (r *CartItemGormRepository) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Update("quantity", qty)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細のバリアントを差し替え
func (r *CartItemGormRepository) UpdateVariant(ctx context.Context, cartItemID int64, variantID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Update("variant_id", variantID)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *CartItemGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// チェックアウト済みの明細だけをまとめて削除。
// 途中で追加された明細はIDリストに含まれないので消えない。
func (r *CartItemGormRepository) DeleteByIDs(ctx context.Context, cartID int64, cartItemIDs []int64) error {
	if len(cartItemIDs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Where("cart_id = ? AND id IN ?", cartID, cartItemIDs).
		Delete(&model.CartItem{}).Error
}

// 明細を取得
func (r *CartItemGormRepository) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var item model.CartItem

	err := r.db.WithContext(ctx).
		Where("id = ?", cartItemID).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

//cartItemが、そのuserのカートに属しているかを判定

func (r *CartItemGormRepository) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Table("cart_items").
		Joins("join carts on carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.user_id = ?", cartItemID, userID).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type ReferralGormRepository struct {
	db *gorm.DB
}

func NewReferralGormRepository(db *gorm.DB) *ReferralGormRepository {
	return &ReferralGormRepository{db: db}
}

func (r *ReferralGormRepository) Create(ctx context.Context, referral model.Referral) (model.Referral, error) {
	if err := r.db.WithContext(ctx).Create(&referral).Error; err != nil {
		return model.Referral{}, err
	}
	return referral, nil
}

func (r *ReferralGormRepository) FindByCode(ctx context.Context, code string) (model.Referral, error) {
	var ref model.Referral

	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&ref).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Referral{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Referral{}, err
	}
	return ref, nil
}

func (r *ReferralGormRepository) ListByReferrer(ctx context.Context, userID int64) ([]model.Referral, error) {
	var refs []model.Referral

	if err := r.db.WithContext(ctx).
		Where("referrer_user_id = ?", userID).
		Order("id asc").
		Find(&refs).Error; err != nil {
		return []model.Referral{}, err
	}

	return refs, nil
}

func (r *ReferralGormRepository) CreateEvent(ctx context.Context, event model.ReferralEvent) error {
	return r.db.WithContext(ctx).Create(&event).Error
}

// 集計用。コード群のイベントをまとめて取る
func (r *ReferralGormRepository) ListEventsByCodes(ctx context.Context, codes []string) ([]model.ReferralEvent, error) {
	if len(codes) == 0 {
		return []model.ReferralEvent{}, nil
	}

	var events []model.ReferralEvent

	if err := r.db.WithContext(ctx).
		Where("code IN ?", codes).
		Order("id asc").
		Find(&events).Error; err != nil {
		return []model.ReferralEvent{}, err
	}

	return events, nil
}

// この注文でconversionが記録済みか
func (r *ReferralGormRepository) HasConversionForOrder(ctx context.Context, orderID int64) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.ReferralEvent{}).
		Where("order_id = ? AND kind = ?", orderID, model.ReferralEventConversion).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *ReferralGormRepository) CreateReward(ctx context.Context, reward model.ReferralReward) error {
	return r.db.WithContext(ctx).Create(&reward).Error
}

func (r *ReferralGormRepository) ListRewardsByUser(ctx context.Context, userID int64, page int, limit int) ([]model.ReferralReward, int64, error) {
	var rewards []model.ReferralReward
	var total int64

	q := r.db.WithContext(ctx).Model(&model.ReferralReward{}).Where("user_id = ?", userID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := q.Order("id desc").Offset(offset).Limit(limit).Find(&rewards).Error; err != nil {
		return nil, 0, err
	}

	return rewards, total, nil
}

func (r *ReferralGormRepository) SumRewardsByUser(ctx context.Context, userID int64) (int64, error) {
	var sum int64

	err := r.db.WithContext(ctx).
		Model(&model.ReferralReward{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&sum).Error

	if err != nil {
		return 0, err
	}
	return sum, nil
}

package repository

import (
	"context"

	"app/internal/domain/model"
)

// 紹介コード・イベント・報酬の永続化の約束。
type ReferralRepository interface {
	Create(ctx context.Context, referral model.Referral) (model.Referral, error)
	FindByCode(ctx context.Context, code string) (model.Referral, error)
	ListByReferrer(ctx context.Context, userID int64) ([]model.Referral, error)

	CreateEvent(ctx context.Context, event model.ReferralEvent) error
	//複数コードのイベントをまとめて取得（集計用）
	ListEventsByCodes(ctx context.Context, codes []string) ([]model.ReferralEvent, error)
	//この注文で既にconversionが記録済みか
	HasConversionForOrder(ctx context.Context, orderID int64) (bool, error)

	CreateReward(ctx context.Context, reward model.ReferralReward) error
	ListRewardsByUser(ctx context.Context, userID int64, page int, limit int) ([]model.ReferralReward, int64, error)
	SumRewardsByUser(ctx context.Context, userID int64) (int64, error)
}

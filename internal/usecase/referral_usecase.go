package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/rs/zerolog"
)

// ReferralUsecase は紹介コードの発行・トラッキング・報酬を扱う。
// click/signup/conversionの記録は広告的な付帯情報なので、
// 不正・重複は黙って捨ててログだけ残す（購入フローにエラーを返さない）。
type ReferralUsecase struct {
	referralRepo repo.ReferralRepository
	tx           repo.TransactionManager
	cfg          config.Commerce
	logger       zerolog.Logger
}

func NewReferralUsecase(
	referralRepo repo.ReferralRepository,
	tx repo.TransactionManager,
	cfg config.Commerce,
	logger zerolog.Logger,
) *ReferralUsecase {
	return &ReferralUsecase{
		referralRepo: referralRepo,
		tx:           tx,
		cfg:          cfg,
		logger:       logger,
	}
}

type ReferralOutput struct {
	Code string `json:"rid"`
	URL  string `json:"url"`
}

type ReferralStatsOutput struct {
	TotalReferrals    int64   `json:"total_referrals"`
	TotalClicks       int64   `json:"total_clicks"`
	TotalSignups      int64   `json:"total_signups"`
	TotalConversions  int64   `json:"total_conversions"`
	TotalRevenueCents int64   `json:"total_revenue_cents"`
	TotalRewardsCents int64   `json:"total_rewards_cents"`
	ConversionRate    float64 `json:"conversion_rate"`
}

type RewardOutput struct {
	ID          int64  `json:"id"`
	Code        string `json:"rid"`
	OrderID     int64  `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
}

// GenerateCode は128bit乱数のコードを発行する。
func (u *ReferralUsecase) GenerateCode(ctx context.Context, userID int64) (ReferralOutput, error) {
	if userID <= 0 {
		return ReferralOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	code, err := newReferralCode()
	if err != nil {
		return ReferralOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "rng error")
	}

	ref, err := u.referralRepo.Create(ctx, model.Referral{
		Code:           code,
		ReferrerUserID: userID,
		Active:         true,
	})
	if err != nil {
		return ReferralOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return ReferralOutput{
		Code: ref.Code,
		URL:  u.cfg.ReferralBaseURL + "?rid=" + ref.Code,
	}, nil
}

// RecordClick はクリックを記録する。コードが無効でも黙って成功扱い。
func (u *ReferralUsecase) RecordClick(ctx context.Context, code string) {
	ref, err := u.referralRepo.FindByCode(ctx, code)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !ref.Active) {
		return
	}
	if err != nil {
		u.logger.Warn().Err(err).Str("rid", code).Msg("referral click lookup failed")
		return
	}

	if err := u.referralRepo.CreateEvent(ctx, model.ReferralEvent{
		Code: ref.Code,
		Kind: model.ReferralEventClick,
	}); err != nil {
		u.logger.Warn().Err(err).Str("rid", code).Msg("referral click not recorded")
	}
}

// RecordSignup は紹介経由のサインアップを記録する。
// 自己紹介（referrer == 新規ユーザー）は黙って捨てる。
func (u *ReferralUsecase) RecordSignup(ctx context.Context, code string, newUserID int64) {
	ref, err := u.referralRepo.FindByCode(ctx, code)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !ref.Active) {
		return
	}
	if err != nil {
		u.logger.Warn().Err(err).Str("rid", code).Msg("referral signup lookup failed")
		return
	}

	if ref.ReferrerUserID == newUserID {
		u.logger.Info().Str("rid", code).Int64("user_id", newUserID).Msg("self-referral signup rejected")
		return
	}

	if err := u.referralRepo.CreateEvent(ctx, model.ReferralEvent{
		Code:   ref.Code,
		Kind:   model.ReferralEventSignup,
		UserID: newUserID,
	}); err != nil {
		u.logger.Warn().Err(err).Str("rid", code).Msg("referral signup not recorded")
	}
}

// RecordConversion は購入conversionを記録して報酬を作る。
// 却下条件（無効コード・重複注文・自己購入）はエラーにせずログだけ。
// errorを返すのはインフラ障害のときだけで、呼び出し元はそれも飲み込む。
func (u *ReferralUsecase) RecordConversion(ctx context.Context, code string, orderID int64, purchaserID int64, amountCents int64) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ref, err := r.Referrals().FindByCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !ref.Active) {
			u.logger.Info().Str("rid", code).Int64("order_id", orderID).Msg("conversion for unknown or inactive code ignored")
			return nil
		}
		if err != nil {
			return err
		}

		//自己購入は報酬なし
		if ref.ReferrerUserID == purchaserID {
			u.logger.Info().Str("rid", code).Int64("order_id", orderID).Msg("self-referral conversion rejected")
			return nil
		}

		//同じ注文からは1回だけ（再配送されても二重報酬にしない）
		dup, err := r.Referrals().HasConversionForOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if dup {
			u.logger.Info().Str("rid", code).Int64("order_id", orderID).Msg("duplicate conversion ignored")
			return nil
		}

		if err := r.Referrals().CreateEvent(ctx, model.ReferralEvent{
			Code:        ref.Code,
			Kind:        model.ReferralEventConversion,
			UserID:      purchaserID,
			OrderID:     orderID,
			AmountCents: amountCents,
		}); err != nil {
			return err
		}

		//報酬は注文額の一定割合、上限つき
		reward := amountCents * u.cfg.RewardRateBasisPoints / 10000
		if reward > u.cfg.RewardCapCents {
			reward = u.cfg.RewardCapCents
		}

		//order_idユニークが競合時の最後の砦
		if err := r.Referrals().CreateReward(ctx, model.ReferralReward{
			UserID:      ref.ReferrerUserID,
			Code:        ref.Code,
			OrderID:     orderID,
			AmountCents: reward,
			Status:      model.RewardStatusPending,
		}); err != nil {
			return err
		}

		return nil
	})
}

// GetStats は自分の紹介実績の集計。紹介コードが無ければ全部ゼロ。
func (u *ReferralUsecase) GetStats(ctx context.Context, userID int64) (ReferralStatsOutput, error) {
	if userID <= 0 {
		return ReferralStatsOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	refs, err := u.referralRepo.ListByReferrer(ctx, userID)
	if err != nil {
		return ReferralStatsOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	out := ReferralStatsOutput{TotalReferrals: int64(len(refs))}
	if len(refs) == 0 {
		return out, nil
	}

	codes := make([]string, 0, len(refs))
	for _, r := range refs {
		codes = append(codes, r.Code)
	}

	events, err := u.referralRepo.ListEventsByCodes(ctx, codes)
	if err != nil {
		return ReferralStatsOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	for _, e := range events {
		switch e.Kind {
		case model.ReferralEventClick:
			out.TotalClicks++
		case model.ReferralEventSignup:
			out.TotalSignups++
		case model.ReferralEventConversion:
			out.TotalConversions++
			out.TotalRevenueCents += e.AmountCents
		}
	}

	rewards, err := u.referralRepo.SumRewardsByUser(ctx, userID)
	if err != nil {
		return ReferralStatsOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	out.TotalRewardsCents = rewards

	if out.TotalSignups > 0 {
		out.ConversionRate = float64(out.TotalConversions) / float64(out.TotalSignups) * 100
	}

	return out, nil
}

// ListRewards は自分が受け取った報酬の一覧。
func (u *ReferralUsecase) ListRewards(ctx context.Context, userID int64, page int, limit int) ([]RewardOutput, error) {
	if userID <= 0 {
		return []RewardOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	rewards, _, err := u.referralRepo.ListRewardsByUser(ctx, userID, page, limit)
	if err != nil {
		return []RewardOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	outs := make([]RewardOutput, 0, len(rewards))
	for _, rw := range rewards {
		outs = append(outs, RewardOutput{
			ID:          rw.ID,
			Code:        rw.Code,
			OrderID:     rw.OrderID,
			AmountCents: rw.AmountCents,
			Status:      string(rw.Status),
		})
	}

	return outs, nil
}

// 128bitの乱数コード（URLセーフ）
func newReferralCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

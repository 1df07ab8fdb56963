package config

import (
	"fmt"
	"os"
	"strconv"
)

// 手数料率や上限などの商売まわりの設定。
// グローバル変数にせず、usecase生成時に渡す。
type Commerce struct {
	//税率（basis points。825 = 8.25%）
	TaxRateBasisPoints int64

	//送料（セント）と送料無料になる小計の下限
	ShippingFeeCents           int64
	FreeShippingThresholdCents int64

	//1明細あたりの数量上限
	MaxQuantityPerItem int64

	//紹介報酬の率（basis points）と上限（セント）
	RewardRateBasisPoints int64
	RewardCapCents        int64

	//紹介リンクのベースURL
	ReferralBaseURL string
}

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int

	JWTSecret string // JWT署名シークレット

	//PSP接続。空ならfakeゲートウェイで動かす
	PSPBaseURL string
	PSPAPIKey  string

	Commerce Commerce
}

// Loadは環境変数から読む
func Load() (Config, error) {
	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		PSPBaseURL: os.Getenv("PSP_BASE_URL"),
		PSPAPIKey:  os.Getenv("PSP_API_KEY"),

		Commerce: Commerce{
			TaxRateBasisPoints:         envInt64("TAX_RATE_BP", 825),
			ShippingFeeCents:           envInt64("SHIPPING_FEE_CENTS", 1200),
			FreeShippingThresholdCents: envInt64("FREE_SHIPPING_THRESHOLD_CENTS", 10000),
			MaxQuantityPerItem:         envInt64("MAX_QTY_PER_ITEM", 5),
			RewardRateBasisPoints:      envInt64("REWARD_RATE_BP", 1000),
			RewardCapCents:             envInt64("REWARD_CAP_CENTS", 5000),
			ReferralBaseURL:            envString("REFERRAL_BASE_URL", "https://fittwin.com"),
		},
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.PostgresUser == "" {
		return Config{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if cfg.PostgresDB == "" {
		return Config{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if cfg.PostgresHost == "" {
		return Config{}, fmt.Errorf("POSTGRES_HOST is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// DefaultCommerce はテストや開発で使う既定値。
func DefaultCommerce() Commerce {
	return Commerce{
		TaxRateBasisPoints:         825,
		ShippingFeeCents:           1200,
		FreeShippingThresholdCents: 10000,
		MaxQuantityPerItem:         5,
		RewardRateBasisPoints:      1000,
		RewardCapCents:             5000,
		ReferralBaseURL:            "https://fittwin.com",
	}
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return n, nil
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envString(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

package main

import (
	"os"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/payment"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	//.envは無ければ環境変数だけで動かす
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}

	if err := gormDB.AutoMigrate(
		&model.Product{},
		&model.ProductVariant{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Address{},
		&model.Referral{},
		&model.ReferralEvent{},
		&model.ReferralReward{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
	); err != nil {
		logger.Fatal().Err(err).Msg("auto migrate failed")
	}

	//Repository（GORM実装）生成
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	variantRepo := infraRepo.NewVariantGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	referralRepo := infraRepo.NewReferralGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//PSP。接続先が無いときはフェイクで動かす（ローカル開発用）
	var gateway payment.Gateway
	if cfg.PSPBaseURL != "" {
		gateway = payment.NewPSPClientGateway(payment.NewHTTPClient(cfg.PSPBaseURL, cfg.PSPAPIKey))
	} else {
		logger.Warn().Msg("PSP_BASE_URL is not set, using fake payment gateway")
		gateway = payment.NewFakeGateway()
	}

	//Usecase生成
	referralUC := usecase.NewReferralUsecase(referralRepo, txManager, cfg.Commerce, logger)
	cartUC := usecase.NewCartUsecase(cartRepo, cartItemRepo, productRepo, variantRepo, cfg.Commerce)
	orderUC := usecase.NewOrderUsecase(txManager, addressRepo, gateway, referralUC, cfg.Commerce, logger)
	productUC := usecase.NewProductUsecase(productRepo, variantRepo, inventoryRepo, auditRepo)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, auditRepo)
	addressUC := usecase.NewAddressUsecase(addressRepo)

	//Handler生成
	handlers := server.Handlers{
		Product:      handler.NewProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		Order:        handler.NewOrderHandler(orderUC),
		Referral:     handler.NewReferralHandler(referralUC),
		Address:      handler.NewAddressHandler(addressUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
	}

	//Server起動
	addr := cfg.Port
	if addr == "" {
		addr = "8080"
	}
	if addr[0] != ':' {
		addr = ":" + addr
	}

	logger.Info().Str("addr", addr).Msg("starting api server")
	if err := server.Start(addr, cfg, handlers); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

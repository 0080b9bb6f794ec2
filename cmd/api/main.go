package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-turf-reservation/internal/api"
	"github.com/sanosuguru/go-turf-reservation/internal/api/handler"
	apimiddleware "github.com/sanosuguru/go-turf-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-turf-reservation/internal/application"
	"github.com/sanosuguru/go-turf-reservation/internal/config"
	"github.com/sanosuguru/go-turf-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-turf-reservation/internal/infrastructure/razorpay"
	redisinfra "github.com/sanosuguru/go-turf-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-turf-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-turf-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-turf-reservation/internal/worker"
)

func main() {
	cfg := config.Load()

	// ロガー初期化
	logger.Set(logger.NewLogger(os.Getenv("APP_ENV")))
	defer logger.Sync()

	// メトリクス初期化
	m := metrics.Init()

	// DB接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("DB接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション実行
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	// Redis接続
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisinfra.Ping(ctx, redisClient); err != nil {
		cancel()
		logger.Fatal("Redis接続に失敗しました", zap.Error(err))
	}
	cancel()

	lockManager := redisinfra.NewLockManager(redisClient)
	slotCache := redisinfra.NewSlotCache(redisClient)

	// 決済ゲートウェイクライアント
	razorpayClient := razorpay.NewClient(&cfg.Payment)

	// リポジトリ初期化
	turfRepo := postgres.NewTurfRepository(db)
	slotRepo := postgres.NewSlotRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	txManager := postgres.NewTxManager(db)

	// サービス初期化
	turfService := application.NewTurfService(turfRepo, slotRepo, slotCache)
	bookingService := application.NewBookingService(txManager, bookingRepo, slotRepo, turfRepo, lockManager, m, cfg.Booking)
	paymentService := application.NewPaymentService(txManager, bookingRepo, slotRepo, razorpayClient, razorpayClient, m, cfg.Payment, cfg.Booking)

	// 期限切れ予約の回収ワーカー起動
	reaper := worker.NewExpiredBookingReaper(bookingService, cfg.Booking.ReaperInterval)
	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	go reaper.Start(reaperCtx)

	// ハンドラー初期化
	turfHandler := handler.NewTurfHandler(turfService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	healthHandler := handler.NewHealthHandler()

	// Echo セットアップ
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	apimiddleware.SetupMiddleware(e)
	e.Use(apimiddleware.PrometheusMiddleware(m))

	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), apimiddleware.MetricsBasicAuth())

	v1 := e.Group("/api/v1")
	v1.POST("/turfs", turfHandler.Create)
	v1.GET("/turfs", turfHandler.List)
	v1.GET("/turfs/:id", turfHandler.GetByID)
	v1.POST("/turfs/:id/slots", turfHandler.GenerateSlots)
	v1.GET("/turfs/:id/slots", turfHandler.GetSlots)
	v1.GET("/turfs/:id/slots/available-count", turfHandler.CountAvailable)

	v1.POST("/bookings", bookingHandler.Create)
	v1.GET("/bookings", bookingHandler.GetUserBookings)
	v1.GET("/bookings/:id", bookingHandler.GetByID)
	v1.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	v1.GET("/settlements/bookings", bookingHandler.ListSettlements)

	v1.POST("/bookings/:id/payment-order", paymentHandler.CreateOrder)
	v1.POST("/payments/verify", paymentHandler.Verify)
	v1.POST("/payments/failed", paymentHandler.Failed)

	// サーバー起動
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// ワーカーを先に止めてから接続を閉じる
	reaperCancel()
	reaper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}

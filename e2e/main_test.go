package e2e

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-turf-reservation/internal/api"
	"github.com/sanosuguru/go-turf-reservation/internal/api/handler"
	"github.com/sanosuguru/go-turf-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-turf-reservation/internal/application"
	"github.com/sanosuguru/go-turf-reservation/internal/config"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-turf-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-turf-reservation/internal/infrastructure/razorpay"
	redisinfra "github.com/sanosuguru/go-turf-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-turf-reservation/internal/pkg/metrics"
)

// testKeySecret はE2Eテスト用のゲートウェイ署名シークレット
const testKeySecret = "e2e-test-secret"

var (
	testServer  *TestServer
	testDB      *sqlx.DB
	redisClient *redis.Client
)

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo *echo.Echo
}

// stubGateway は外部ゲートウェイを呼ばずに注文IDを払い出すスタブ
// 署名検証は本物の検証器を使うため、決済確定フローはそのまま通る
type stubGateway struct {
	seq atomic.Int64
}

func (g *stubGateway) CreateOrder(ctx context.Context, amount int, currency, receipt string) (*payment.Order, error) {
	return &payment.Order{
		GatewayOrderID: fmt.Sprintf("order_e2e_%06d", g.seq.Add(1)),
		Amount:         amount,
		Currency:       currency,
		Receipt:        receipt,
	}, nil
}

// gatewaySignature はゲートウェイが付与する署名をテスト側で再現する
func gatewaySignature(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// TestMain はE2Eテストのエントリポイント
// パッケージ全体で1回だけサーバーを起動することで高速化
func TestMain(m *testing.M) {
	cfg := config.Load()
	cfg.Payment.KeySecret = testKeySecret

	// DB接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		os.Exit(0) // DB未起動時はスキップ
	}
	testDB = db

	if err := postgres.RunMigrations(db.DB, "../migrations"); err != nil {
		db.Close()
		os.Exit(0)
	}

	// Redis接続
	rc := redisinfra.NewClient(&cfg.Redis)
	if err := redisinfra.Ping(context.Background(), rc); err != nil {
		db.Close()
		os.Exit(0) // Redis未起動時はスキップ
	}
	redisClient = rc

	// サービス初期化
	lockManager := redisinfra.NewLockManager(redisClient)
	slotCache := redisinfra.NewSlotCache(redisClient)
	m2 := metrics.Init()

	turfRepo := postgres.NewTurfRepository(db)
	slotRepo := postgres.NewSlotRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	txManager := postgres.NewTxManager(db)

	verifier := razorpay.NewClient(&cfg.Payment)
	gateway := &stubGateway{}

	turfService := application.NewTurfService(turfRepo, slotRepo, slotCache)
	bookingService := application.NewBookingService(txManager, bookingRepo, slotRepo, turfRepo, lockManager, m2, cfg.Booking)
	paymentService := application.NewPaymentService(txManager, bookingRepo, slotRepo, gateway, verifier, m2, cfg.Payment, cfg.Booking)

	turfHandler := handler.NewTurfHandler(turfService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	healthHandler := handler.NewHealthHandler()

	// Echo セットアップ
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e)

	e.GET("/health", healthHandler.Check)

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

	testServer = &TestServer{Echo: e}

	// テスト実行
	code := m.Run()

	// 最終クリーンアップ
	cleanupTables()
	redisClient.Close()
	db.Close()

	os.Exit(code)
}

// cleanupTables はテーブルをクリーンアップ
func cleanupTables() {
	testDB.Exec("TRUNCATE TABLE booking_slots, bookings, slots, turfs RESTART IDENTITY CASCADE")
	redisClient.FlushDB(context.Background())
}

// getTestServer は共有サーバーを取得（テスト前にテーブルをクリーンアップ）
func getTestServer(t *testing.T) *TestServer {
	t.Helper()
	if testServer == nil {
		t.Skip("テスト環境が利用できません")
	}
	cleanupTables()
	return testServer
}

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

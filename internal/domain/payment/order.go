package payment

import "context"

// Order は外部ゲートウェイの注文ハンドルを表す
// 予約1件の支払いに対応する一時的な値オブジェクト
type Order struct {
	BookingID      string
	GatewayOrderID string
	Amount         int
	Currency       string
	Receipt        string
}

// Gateway は外部決済ゲートウェイのインターフェース
// 注文作成は予約状態に副作用を持たず、失敗時は呼び出し側で安全にリトライできる
type Gateway interface {
	// CreateOrder はゲートウェイに注文を作成する
	CreateOrder(ctx context.Context, amount int, currency, receipt string) (*Order, error)
}

// SignatureVerifier はゲートウェイコールバックの署名検証を行うインターフェース
type SignatureVerifier interface {
	// VerifySignature は orderID と paymentID に対する署名が正当かを返す
	VerifySignature(orderID, paymentID, signature string) bool
}

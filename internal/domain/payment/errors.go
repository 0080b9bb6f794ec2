package payment

import "errors"

// Payment ドメインのエラー定義
var (
	// ErrSignatureMismatch は署名検証の失敗を表す
	// セキュリティイベントとして扱い、予約状態は一切変更しない
	ErrSignatureMismatch = errors.New("署名の検証に失敗しました")

	// ErrGatewayUnavailable はゲートウェイへの接続失敗を表す
	// 予約状態に副作用がないため呼び出し側でリトライ可能
	ErrGatewayUnavailable = errors.New("決済ゲートウェイに接続できません")

	// ErrOrderMismatch はコールバックの注文IDが予約と一致しないことを表す
	ErrOrderMismatch = errors.New("注文IDが予約と一致しません")

	ErrBookingNotPayable = errors.New("この予約は支払いできる状態ではありません")
)

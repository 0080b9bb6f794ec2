package transaction

import "context"

// Tx はトランザクションを表すインターフェース
// 予約とスロット配置の状態遷移を同一トランザクションで行うための抽象化で、
// ドメイン層がインフラ層（sqlx等）に依存しないようにする
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	Rollback() error
}

// Manager はトランザクションを管理するインターフェース
type Manager interface {
	// Begin は新しいトランザクションを開始する
	Begin(ctx context.Context) (Tx, error)
}

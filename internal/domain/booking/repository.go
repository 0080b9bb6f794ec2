package booking

import (
	"context"
	"time"

	"github.com/sanosuguru/go-turf-reservation/internal/domain/transaction"
)

// SettlementEntry は精算フィード用の確定予約レコードを表す
// 下流の精算処理が読み取り専用で参照する
type SettlementEntry struct {
	BookingID   string
	TurfID      string
	OwnerID     string
	UserID      string
	SlotTotal   int
	PlatformFee int
	Amount      int
	Status      Status
	ConfirmedAt time.Time
}

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, b *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByGatewayOrderID はゲートウェイ注文IDから予約を取得する
	GetByGatewayOrderID(ctx context.Context, orderID string) (*Booking, error)

	// GetByUserID はユーザーIDから予約一覧を取得する
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*Booking, error)

	// FindActivePendingByUserAndSlots は同一ユーザーの未期限切れ支払い待ち予約のうち
	// 指定スロットと重複するものを返す（再予約の冪等性用）
	FindActivePendingByUserAndSlots(ctx context.Context, userID string, slotIDs []string) (*Booking, error)

	// Update は予約を更新する（トランザクション必須）
	// expected が現在の状態と一致する場合のみ更新する compare-and-set であり、
	// 一致しない場合は ErrBookingStateChanged を返す
	Update(ctx context.Context, tx transaction.Tx, b *Booking, expected Status) error

	// SetGatewayOrder は支払い待ちの予約にゲートウェイ注文IDを記録する
	SetGatewayOrder(ctx context.Context, id, gatewayOrderID string) error

	// GetExpiredPending は期限切れの支払い待ち予約を取得する
	GetExpiredPending(ctx context.Context) ([]*Booking, error)

	// ListConfirmedBetween は精算フィード用に期間内の確定・完了予約を取得する
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]*SettlementEntry, error)
}

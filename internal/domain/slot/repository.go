package slot

import (
	"context"
	"time"

	"github.com/sanosuguru/go-turf-reservation/internal/domain/transaction"
)

// Repository はスロットリポジトリのインターフェース
type Repository interface {
	// Create は新しいスロットを作成する
	Create(ctx context.Context, slot *Slot) error

	// CreateBulk は複数のスロットを一括作成する
	CreateBulk(ctx context.Context, slots []*Slot) error

	// GetByID はIDからスロットを取得する
	GetByID(ctx context.Context, id string) (*Slot, error)

	// GetByIDs は複数IDからスロット一覧を取得する
	GetByIDs(ctx context.Context, ids []string) ([]*Slot, error)

	// GetByTurfAndDate はターフIDと日付からスロット一覧を取得する
	GetByTurfAndDate(ctx context.Context, turfID string, date time.Time) ([]*Slot, error)

	// GetAvailableByTurfAndDate は予約可能なスロット一覧を取得する
	GetAvailableByTurfAndDate(ctx context.Context, turfID string, date time.Time) ([]*Slot, error)

	// HoldSlots はスロット群を一括で仮押さえする（全件成功か全件失敗、トランザクション必須）
	// 1件でも available でないスロットがあれば ErrSlotConflict を返す
	HoldSlots(ctx context.Context, tx transaction.Tx, slotIDs []string, bookingID string) error

	// GetUnavailable は指定スロットのうち予約不可能なもののIDを返す
	GetUnavailable(ctx context.Context, slotIDs []string) ([]string, error)

	// ConfirmSlots は指定予約が仮押さえ中のスロットを確定状態にする（トランザクション必須）
	ConfirmSlots(ctx context.Context, tx transaction.Tx, slotIDs []string, bookingID string) error

	// ReleaseSlots はスロットを解放する（冪等、トランザクション必須）
	ReleaseSlots(ctx context.Context, tx transaction.Tx, slotIDs []string) error

	// CountAvailableByTurfAndDate は予約可能なスロット数を取得する
	CountAvailableByTurfAndDate(ctx context.Context, turfID string, date time.Time) (int, error)
}

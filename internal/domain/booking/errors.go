package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound         = errors.New("予約が見つかりません")
	ErrBookingNotPending       = errors.New("予約は支払い待ちではありません")
	ErrBookingExpired          = errors.New("予約の支払い期限が切れています")
	ErrBookingAlreadyFinalized = errors.New("予約は既に確定済みまたは終了しています")
	ErrBookingNotCancellable   = errors.New("この状態の予約はキャンセルできません")
	ErrBookingNotConfirmed     = errors.New("予約は確定されていません")
	ErrBookingStateChanged     = errors.New("予約の状態が他の処理によって変更されました")
	ErrTooLateToCancel         = errors.New("開始時刻が近いためキャンセルできません")
	ErrInvalidCancelActor      = errors.New("キャンセル実行者が不正です")
	ErrNotBookingOwner         = errors.New("この予約の所有者ではありません")
	ErrTurfIDRequired          = errors.New("ターフIDは必須です")
	ErrUserIDRequired          = errors.New("ユーザーIDは必須です")
	ErrSlotIDsRequired         = errors.New("スロットは1件以上選択してください")
	ErrSlotsSpanMultipleDates  = errors.New("異なる日付のスロットは同時に予約できません")
	ErrSlotsSpanMultipleTurfs  = errors.New("異なるターフのスロットは同時に予約できません")
	ErrInvalidAmount           = errors.New("金額が不正です")
)

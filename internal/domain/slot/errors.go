package slot

import "errors"

// Slot ドメインのエラー定義
var (
	ErrSlotNotFound      = errors.New("スロットが見つかりません")
	ErrSlotNotAvailable  = errors.New("スロットは予約できません")
	ErrSlotNotHeld       = errors.New("スロットは仮押さえされていません")
	ErrSlotConflict      = errors.New("スロットは既に他の予約に使用されています")
	ErrTurfIDRequired    = errors.New("ターフIDは必須です")
	ErrTimeRangeRequired = errors.New("開始時刻と終了時刻は必須です")
	ErrInvalidTimeRange  = errors.New("時間帯が不正です")
	ErrInvalidPrice      = errors.New("価格は0以上である必要があります")
)

package turf

import "errors"

// Turf ドメインのエラー定義
var (
	ErrTurfNotFound     = errors.New("ターフが見つかりません")
	ErrTurfNameRequired = errors.New("ターフ名は必須です")
	ErrOwnerIDRequired  = errors.New("オーナーIDは必須です")
)

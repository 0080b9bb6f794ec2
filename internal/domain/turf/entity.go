package turf

import "time"

// Turf はターフ（貸しグラウンド）エンティティを表す
// カタログ情報は外部の管理系が所有し、予約コアからは読み取り専用
type Turf struct {
	ID        string
	Name      string
	OwnerID   string
	Location  string
	OpenTime  string // "HH:MM" 形式
	CloseTime string // "HH:MM" 形式
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTurf は新しいターフを作成する
func NewTurf(name, ownerID, location, openTime, closeTime string) *Turf {
	now := time.Now()
	return &Turf{
		Name:      name,
		OwnerID:   ownerID,
		Location:  location,
		OpenTime:  openTime,
		CloseTime: closeTime,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate はターフの検証を行う
func (t *Turf) Validate() error {
	if t.Name == "" {
		return ErrTurfNameRequired
	}
	if t.OwnerID == "" {
		return ErrOwnerIDRequired
	}
	return nil
}

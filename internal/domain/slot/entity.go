package slot

import (
	"fmt"
	"time"
)

// Status はスロットの状態を表す
type Status string

const (
	StatusAvailable Status = "available"
	StatusHeld      Status = "held"
	StatusBooked    Status = "booked"
)

// Slot はターフの予約可能な時間枠エンティティを表す
// 識別子は (TurfID, Date, StartTime) の組
type Slot struct {
	ID        string
	TurfID    string
	Date      time.Time // 日付のみ（時刻部分は 00:00:00）
	StartTime string    // "HH:MM" 形式
	EndTime   string    // "HH:MM" 形式
	Status    Status
	Price     int // ルピー単位
	HeldBy    *string // booking_id
	HeldAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int // 楽観的ロック用
}

// NewSlot は新しいスロットを作成する
func NewSlot(turfID string, date time.Time, startTime, endTime string, price int) *Slot {
	now := time.Now()
	return &Slot{
		TurfID:    turfID,
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
		Status:    StatusAvailable,
		Price:     price,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   0,
	}
}

// IsAvailable はスロットが予約可能かを返す
func (s *Slot) IsAvailable() bool {
	return s.Status == StatusAvailable
}

// StartAt は日付と開始時刻を合成した時刻を返す
func (s *Slot) StartAt() (time.Time, error) {
	t, err := time.ParseInLocation("15:04", s.StartTime, s.Date.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("開始時刻の解析に失敗: %w", err)
	}
	return time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(), t.Hour(), t.Minute(), 0, 0, s.Date.Location()), nil
}

// Hold はスロットを仮押さえ状態にする
func (s *Slot) Hold(bookingID string) error {
	if s.Status != StatusAvailable {
		return ErrSlotNotAvailable
	}
	now := time.Now()
	s.Status = StatusHeld
	s.HeldBy = &bookingID
	s.HeldAt = &now
	s.UpdatedAt = now
	return nil
}

// Confirm はスロットを予約確定状態にする
func (s *Slot) Confirm() error {
	if s.Status != StatusHeld {
		return ErrSlotNotHeld
	}
	s.Status = StatusBooked
	s.UpdatedAt = time.Now()
	return nil
}

// Release はスロットを解放する
// 既に解放済みの場合も何もせず成功する（冪等）
func (s *Slot) Release() {
	s.Status = StatusAvailable
	s.HeldBy = nil
	s.HeldAt = nil
	s.UpdatedAt = time.Now()
}

// Validate はスロットの検証を行う
func (s *Slot) Validate() error {
	if s.TurfID == "" {
		return ErrTurfIDRequired
	}
	if s.StartTime == "" || s.EndTime == "" {
		return ErrTimeRangeRequired
	}
	if _, err := time.Parse("15:04", s.StartTime); err != nil {
		return ErrInvalidTimeRange
	}
	end, err := time.Parse("15:04", s.EndTime)
	if err != nil {
		return ErrInvalidTimeRange
	}
	start, _ := time.Parse("15:04", s.StartTime)
	if !end.After(start) {
		return ErrInvalidTimeRange
	}
	if s.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}

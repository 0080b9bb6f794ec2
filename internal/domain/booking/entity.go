package booking

import "time"

// Status は予約の状態を表す
type Status string

const (
	StatusPendingPayment      Status = "pending_payment"
	StatusConfirmed           Status = "confirmed"
	StatusPaymentFailed       Status = "payment_failed"
	StatusExpired             Status = "expired"
	StatusCancelledByCustomer Status = "cancelled_by_customer"
	StatusCancelledByOwner    Status = "cancelled_by_owner"
	StatusCancelledByAdmin    Status = "cancelled_by_admin"
	StatusCompleted           Status = "completed"
)

// PaymentStatus は支払いの状態を表す
type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = "none"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// CancelActor はキャンセル実行者の役割を表す
type CancelActor string

const (
	ActorCustomer CancelActor = "customer"
	ActorOwner    CancelActor = "owner"
	ActorAdmin    CancelActor = "admin"
)

// CancelledStatus はキャンセル実行者に対応する予約状態を返す
func (a CancelActor) CancelledStatus() (Status, error) {
	switch a {
	case ActorCustomer:
		return StatusCancelledByCustomer, nil
	case ActorOwner:
		return StatusCancelledByOwner, nil
	case ActorAdmin:
		return StatusCancelledByAdmin, nil
	default:
		return "", ErrInvalidCancelActor
	}
}

// CanTransition は予約状態の遷移が許可されているかを返す
// 状態遷移表はここに集約し、各サービスはこの判定を経由して遷移する
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPendingPayment:
		switch to {
		case StatusConfirmed, StatusPaymentFailed, StatusExpired,
			StatusCancelledByCustomer, StatusCancelledByOwner, StatusCancelledByAdmin:
			return true
		}
		return false
	case StatusConfirmed:
		switch to {
		case StatusCompleted,
			StatusCancelledByCustomer, StatusCancelledByOwner, StatusCancelledByAdmin:
			return true
		}
		return false
	case StatusPaymentFailed, StatusExpired, StatusCompleted,
		StatusCancelledByCustomer, StatusCancelledByOwner, StatusCancelledByAdmin:
		// 終端状態
		return false
	}
	return false
}

// IsTerminal は終端状態かを返す
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPaymentFailed, StatusExpired, StatusCompleted,
		StatusCancelledByCustomer, StatusCancelledByOwner, StatusCancelledByAdmin:
		return true
	}
	return false
}

// Booking は予約エンティティを表す
// 同一ターフ・同一日付のスロット群に対する顧客の保有権を表す
type Booking struct {
	ID             string
	TurfID         string
	UserID         string
	SlotIDs        []string
	SlotDate       time.Time
	SlotTotal      int
	PlatformFee    int
	Amount         int
	Status         Status
	PaymentStatus  PaymentStatus
	PaymentID      *string
	GatewayOrderID *string
	ExpiresAt      time.Time
	ConfirmedAt    *time.Time
	CancelledAt    *time.Time
	CancelledBy    *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ComputePlatformFee はスロット合計金額からプラットフォーム手数料を計算する
// 手数料率はパーセント指定、端数は切り捨て
func ComputePlatformFee(slotTotal, feePercent int) int {
	return slotTotal * feePercent / 100
}

// NewBooking は新しい予約を作成する
// 金額はカタログ価格から算出した slotTotal を受け取り、手数料を加算する
func NewBooking(turfID, userID string, slotIDs []string, slotDate time.Time, slotTotal, feePercent int, holdTTL time.Duration) *Booking {
	now := time.Now()
	fee := ComputePlatformFee(slotTotal, feePercent)
	return &Booking{
		TurfID:        turfID,
		UserID:        userID,
		SlotIDs:       slotIDs,
		SlotDate:      slotDate,
		SlotTotal:     slotTotal,
		PlatformFee:   fee,
		Amount:        slotTotal + fee,
		Status:        StatusPendingPayment,
		PaymentStatus: PaymentStatusNone,
		ExpiresAt:     now.Add(holdTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsExpired は予約の支払い期限が切れているかを返す
func (b *Booking) IsExpired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// IsPayable は支払い操作を受け付けられる状態かを返す
// grace はゲートウェイコールバック遅延を許容する猶予時間
func (b *Booking) IsPayable(now time.Time, grace time.Duration) bool {
	return b.Status == StatusPendingPayment && !now.After(b.ExpiresAt.Add(grace))
}

// Confirm は支払い検証済みの予約を確定する
func (b *Booking) Confirm(paymentID string, now time.Time, grace time.Duration) error {
	if b.Status != StatusPendingPayment {
		return ErrBookingAlreadyFinalized
	}
	if now.After(b.ExpiresAt.Add(grace)) {
		return ErrBookingExpired
	}
	b.Status = StatusConfirmed
	b.PaymentStatus = PaymentStatusSuccess
	b.PaymentID = &paymentID
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return nil
}

// MarkPaymentFailed は支払い失敗による終端状態へ遷移する
func (b *Booking) MarkPaymentFailed() error {
	if b.Status != StatusPendingPayment {
		return ErrBookingAlreadyFinalized
	}
	b.Status = StatusPaymentFailed
	b.PaymentStatus = PaymentStatusFailed
	b.UpdatedAt = time.Now()
	return nil
}

// Expire は期限切れの予約を終端状態へ遷移する
func (b *Booking) Expire() error {
	if b.Status != StatusPendingPayment {
		return ErrBookingAlreadyFinalized
	}
	b.Status = StatusExpired
	b.UpdatedAt = time.Now()
	return nil
}

// Cancel はキャンセル期限ポリシーを適用して予約をキャンセルする
// earliestStart は予約スロットのうち最も早い開始時刻
func (b *Booking) Cancel(actor CancelActor, earliestStart, now time.Time, cutoff time.Duration) error {
	to, err := actor.CancelledStatus()
	if err != nil {
		return err
	}
	if !CanTransition(b.Status, to) {
		return ErrBookingNotCancellable
	}
	if earliestStart.Sub(now) <= cutoff {
		return ErrTooLateToCancel
	}
	actorName := string(actor)
	b.Status = to
	b.CancelledAt = &now
	b.CancelledBy = &actorName
	b.UpdatedAt = now
	return nil
}

// Complete は利用済みの確定予約を完了状態へ遷移する
func (b *Booking) Complete() error {
	if !CanTransition(b.Status, StatusCompleted) {
		return ErrBookingNotConfirmed
	}
	b.Status = StatusCompleted
	b.UpdatedAt = time.Now()
	return nil
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.TurfID == "" {
		return ErrTurfIDRequired
	}
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if len(b.SlotIDs) == 0 {
		return ErrSlotIDsRequired
	}
	if b.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

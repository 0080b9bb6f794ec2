package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestBooking(t *testing.T) *Booking {
	t.Helper()
	b := NewBooking("turf-1", "user-1", []string{"slot-1", "slot-2"}, time.Now().Add(7*24*time.Hour), 3000, 5, 5*time.Minute)
	require.NoError(t, b.Validate())
	return b
}

func TestComputePlatformFee(t *testing.T) {
	tests := []struct {
		name       string
		slotTotal  int
		feePercent int
		want       int
	}{
		{"5%の手数料", 3000, 5, 150},
		{"端数は切り捨て", 1999, 5, 99},
		{"手数料0%", 3000, 0, 0},
		{"金額0", 0, 5, 0},
		{"10%の手数料", 4500, 10, 450},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePlatformFee(tt.slotTotal, tt.feePercent))
		})
	}
}

func TestNewBooking(t *testing.T) {
	b := createTestBooking(t)

	assert.Equal(t, StatusPendingPayment, b.Status)
	assert.Equal(t, PaymentStatusNone, b.PaymentStatus)
	assert.Equal(t, 3000, b.SlotTotal)
	assert.Equal(t, 150, b.PlatformFee)
	assert.Equal(t, 3150, b.Amount)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), b.ExpiresAt, time.Second)
}

func TestBooking_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Booking)
		wantErr error
	}{
		{"ターフID未指定", func(b *Booking) { b.TurfID = "" }, ErrTurfIDRequired},
		{"ユーザーID未指定", func(b *Booking) { b.UserID = "" }, ErrUserIDRequired},
		{"スロット未選択", func(b *Booking) { b.SlotIDs = nil }, ErrSlotIDsRequired},
		{"負の金額", func(b *Booking) { b.Amount = -1 }, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := createTestBooking(t)
			tt.modify(b)
			assert.ErrorIs(t, b.Validate(), tt.wantErr)
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"支払い待ち→確定", StatusPendingPayment, StatusConfirmed, true},
		{"支払い待ち→支払い失敗", StatusPendingPayment, StatusPaymentFailed, true},
		{"支払い待ち→期限切れ", StatusPendingPayment, StatusExpired, true},
		{"支払い待ち→顧客キャンセル", StatusPendingPayment, StatusCancelledByCustomer, true},
		{"支払い待ち→完了は不可", StatusPendingPayment, StatusCompleted, false},
		{"確定→完了", StatusConfirmed, StatusCompleted, true},
		{"確定→オーナーキャンセル", StatusConfirmed, StatusCancelledByOwner, true},
		{"確定→期限切れは不可", StatusConfirmed, StatusExpired, false},
		{"確定→支払い待ちへの逆行は不可", StatusConfirmed, StatusPendingPayment, false},
		{"期限切れは終端", StatusExpired, StatusConfirmed, false},
		{"完了は終端", StatusCompleted, StatusCancelledByAdmin, false},
		{"支払い失敗は終端", StatusPaymentFailed, StatusPendingPayment, false},
		{"キャンセル済みは終端", StatusCancelledByCustomer, StatusConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPendingPayment.IsTerminal())
	assert.False(t, StatusConfirmed.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.True(t, StatusPaymentFailed.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelledByCustomer.IsTerminal())
	assert.True(t, StatusCancelledByOwner.IsTerminal())
	assert.True(t, StatusCancelledByAdmin.IsTerminal())
}

func TestBooking_Confirm(t *testing.T) {
	t.Run("支払い待ちから確定", func(t *testing.T) {
		b := createTestBooking(t)
		now := time.Now()

		err := b.Confirm("pay-1", now, time.Minute)

		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, b.Status)
		assert.Equal(t, PaymentStatusSuccess, b.PaymentStatus)
		require.NotNil(t, b.PaymentID)
		assert.Equal(t, "pay-1", *b.PaymentID)
		require.NotNil(t, b.ConfirmedAt)
	})

	t.Run("確定済みは再確定できない", func(t *testing.T) {
		b := createTestBooking(t)
		require.NoError(t, b.Confirm("pay-1", time.Now(), time.Minute))

		err := b.Confirm("pay-2", time.Now(), time.Minute)

		assert.ErrorIs(t, err, ErrBookingAlreadyFinalized)
		assert.Equal(t, "pay-1", *b.PaymentID)
	})

	t.Run("期限切れでも猶予内は確定できる", func(t *testing.T) {
		b := createTestBooking(t)
		b.ExpiresAt = time.Now().Add(-30 * time.Second)

		err := b.Confirm("pay-1", time.Now(), time.Minute)

		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, b.Status)
	})

	t.Run("猶予を超えた期限切れは確定できない", func(t *testing.T) {
		b := createTestBooking(t)
		b.ExpiresAt = time.Now().Add(-2 * time.Minute)

		err := b.Confirm("pay-1", time.Now(), time.Minute)

		assert.ErrorIs(t, err, ErrBookingExpired)
		assert.Equal(t, StatusPendingPayment, b.Status)
	})
}

func TestBooking_Cancel(t *testing.T) {
	cutoff := 4 * time.Hour
	now := time.Now()

	t.Run("期限より十分前ならキャンセルできる", func(t *testing.T) {
		b := createTestBooking(t)
		earliestStart := now.Add(5 * time.Hour)

		err := b.Cancel(ActorCustomer, earliestStart, now, cutoff)

		require.NoError(t, err)
		assert.Equal(t, StatusCancelledByCustomer, b.Status)
		require.NotNil(t, b.CancelledBy)
		assert.Equal(t, "customer", *b.CancelledBy)
		require.NotNil(t, b.CancelledAt)
	})

	t.Run("期限境界の判定", func(t *testing.T) {
		tests := []struct {
			name       string
			untilStart time.Duration
			wantErr    error
		}{
			{"開始4時間1分前はキャンセル可", 4*time.Hour + time.Minute, nil},
			{"開始3時間59分前は期限超過", 3*time.Hour + 59*time.Minute, ErrTooLateToCancel},
			{"開始ちょうど4時間前は期限超過", 4 * time.Hour, ErrTooLateToCancel},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				b := createTestBooking(t)
				err := b.Cancel(ActorCustomer, now.Add(tt.untilStart), now, cutoff)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
					assert.Equal(t, StatusPendingPayment, b.Status)
					return
				}
				require.NoError(t, err)
			})
		}
	})

	t.Run("確定済み予約もキャンセルできる", func(t *testing.T) {
		b := createTestBooking(t)
		require.NoError(t, b.Confirm("pay-1", now, time.Minute))

		err := b.Cancel(ActorOwner, now.Add(10*time.Hour), now, cutoff)

		require.NoError(t, err)
		assert.Equal(t, StatusCancelledByOwner, b.Status)
		assert.Equal(t, "owner", *b.CancelledBy)
	})

	t.Run("終端状態はキャンセルできない", func(t *testing.T) {
		b := createTestBooking(t)
		b.Status = StatusExpired

		err := b.Cancel(ActorAdmin, now.Add(10*time.Hour), now, cutoff)

		assert.ErrorIs(t, err, ErrBookingNotCancellable)
	})

	t.Run("不正な実行者", func(t *testing.T) {
		b := createTestBooking(t)

		err := b.Cancel(CancelActor("stranger"), now.Add(10*time.Hour), now, cutoff)

		assert.ErrorIs(t, err, ErrInvalidCancelActor)
	})
}

func TestBooking_Expire(t *testing.T) {
	t.Run("支払い待ちから期限切れ", func(t *testing.T) {
		b := createTestBooking(t)

		require.NoError(t, b.Expire())
		assert.Equal(t, StatusExpired, b.Status)
	})

	t.Run("確定済みは期限切れにできない", func(t *testing.T) {
		b := createTestBooking(t)
		require.NoError(t, b.Confirm("pay-1", time.Now(), time.Minute))

		assert.ErrorIs(t, b.Expire(), ErrBookingAlreadyFinalized)
	})
}

func TestBooking_MarkPaymentFailed(t *testing.T) {
	b := createTestBooking(t)

	require.NoError(t, b.MarkPaymentFailed())
	assert.Equal(t, StatusPaymentFailed, b.Status)
	assert.Equal(t, PaymentStatusFailed, b.PaymentStatus)

	// 二度目は拒否
	assert.ErrorIs(t, b.MarkPaymentFailed(), ErrBookingAlreadyFinalized)
}

func TestBooking_Complete(t *testing.T) {
	t.Run("確定済みから完了", func(t *testing.T) {
		b := createTestBooking(t)
		require.NoError(t, b.Confirm("pay-1", time.Now(), time.Minute))

		require.NoError(t, b.Complete())
		assert.Equal(t, StatusCompleted, b.Status)
	})

	t.Run("支払い待ちからは完了できない", func(t *testing.T) {
		b := createTestBooking(t)

		assert.ErrorIs(t, b.Complete(), ErrBookingNotConfirmed)
	})
}

func TestBooking_IsPayable(t *testing.T) {
	now := time.Now()
	grace := time.Minute

	tests := []struct {
		name   string
		modify func(*Booking)
		want   bool
	}{
		{"期限内の支払い待ち", func(b *Booking) {}, true},
		{"期限切れだが猶予内", func(b *Booking) { b.ExpiresAt = now.Add(-30 * time.Second) }, true},
		{"猶予超過", func(b *Booking) { b.ExpiresAt = now.Add(-2 * time.Minute) }, false},
		{"確定済み", func(b *Booking) { b.Status = StatusConfirmed }, false},
		{"キャンセル済み", func(b *Booking) { b.Status = StatusCancelledByCustomer }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := createTestBooking(t)
			tt.modify(b)
			assert.Equal(t, tt.want, b.IsPayable(now, grace))
		})
	}
}

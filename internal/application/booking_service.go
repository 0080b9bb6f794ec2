package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-turf-reservation/internal/config"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/turf"
	redislock "github.com/sanosuguru/go-turf-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-turf-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-turf-reservation/internal/pkg/metrics"
)

// SlotsUnavailableError は要求スロットの一部が確保できなかったことを表す
// Slots に競合したスロットIDを列挙する
type SlotsUnavailableError struct {
	SlotIDs []string
}

func (e *SlotsUnavailableError) Error() string {
	return fmt.Sprintf("スロットを確保できませんでした: %s", strings.Join(e.SlotIDs, ", "))
}

// Unwrap により errors.Is(err, slot.ErrSlotConflict) で判定できる
func (e *SlotsUnavailableError) Unwrap() error {
	return slot.ErrSlotConflict
}

// BookingService は予約ライフサイクル（作成・キャンセル・期限切れ・精算フィード）を扱う
type BookingService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	slotRepo    slot.Repository
	turfRepo    turf.Repository
	lockManager *redislock.LockManager
	metrics     *metrics.Metrics
	cfg         config.BookingConfig
}

func NewBookingService(
	tm transaction.Manager,
	br booking.Repository,
	sr slot.Repository,
	tr turf.Repository,
	lm *redislock.LockManager,
	m *metrics.Metrics,
	cfg config.BookingConfig,
) *BookingService {
	return &BookingService{
		txManager:   tm,
		bookingRepo: br,
		slotRepo:    sr,
		turfRepo:    tr,
		lockManager: lm,
		metrics:     m,
		cfg:         cfg,
	}
}

type CreateBookingInput struct {
	TurfID  string
	UserID  string
	SlotIDs []string
}

// CreateBooking はスロット群を全件一括で仮押さえし、支払い待ちの予約を作成する
// 同一ユーザーが同じスロットに対して繰り返し呼んでも、有効な支払い待ち予約が
// あればそれを返すだけで新しい仮押さえは作らない
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	if input.UserID == "" {
		return nil, booking.ErrUserIDRequired
	}
	if len(input.SlotIDs) == 0 {
		return nil, booking.ErrSlotIDsRequired
	}
	slotIDs := dedupeAndSort(input.SlotIDs)

	// 同一ユーザーの重複予約チェック（リトライの冪等性）
	existing, err := s.bookingRepo.FindActivePendingByUserAndSlots(ctx, input.UserID, slotIDs)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, booking.ErrBookingNotFound) {
		return nil, fmt.Errorf("重複予約チェックに失敗: %w", err)
	}

	// 分散ロックを取得（スロットIDをソートしてデッドロックを防止）
	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLockWithRetry(ctx, s.buildSlotLockKey(slotIDs), 10*time.Second, 3, 100*time.Millisecond)
		if err != nil {
			if errors.Is(err, redislock.ErrLockNotAcquired) {
				s.countBooking("lock_failed")
				return nil, &SlotsUnavailableError{SlotIDs: slotIDs}
			}
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		defer lock.Release(ctx)
	}

	// スロット確認（価格は必ずカタログから取り直す）
	slots, err := s.slotRepo.GetByIDs(ctx, slotIDs)
	if err != nil {
		return nil, fmt.Errorf("スロット取得に失敗: %w", err)
	}
	if len(slots) != len(slotIDs) {
		return nil, slot.ErrSlotNotFound
	}

	var slotTotal int
	var conflicted []string
	for _, sl := range slots {
		if sl.TurfID != input.TurfID {
			return nil, booking.ErrSlotsSpanMultipleTurfs
		}
		if !sl.Date.Equal(slots[0].Date) {
			return nil, booking.ErrSlotsSpanMultipleDates
		}
		if !sl.IsAvailable() {
			conflicted = append(conflicted, sl.ID)
		}
		slotTotal += sl.Price
	}
	if len(conflicted) > 0 {
		s.countBooking("conflict")
		return nil, &SlotsUnavailableError{SlotIDs: conflicted}
	}

	if _, err := s.turfRepo.GetByID(ctx, input.TurfID); err != nil {
		return nil, fmt.Errorf("ターフ取得に失敗: %w", err)
	}

	b := booking.NewBooking(input.TurfID, input.UserID, slotIDs, slots[0].Date, slotTotal, s.cfg.PlatformFeePercent, s.cfg.HoldTTL)
	if err := b.Validate(); err != nil {
		return nil, err
	}

	// 予約作成と仮押さえを同一トランザクションで行う
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.bookingRepo.Create(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := s.slotRepo.HoldSlots(ctx, tx, slotIDs, b.ID); err != nil {
		if errors.Is(err, slot.ErrSlotConflict) {
			// 同時リクエストに先を越された。競合したスロットを特定して返す
			tx.Rollback()
			unavailable, qerr := s.slotRepo.GetUnavailable(ctx, slotIDs)
			if qerr != nil || len(unavailable) == 0 {
				unavailable = slotIDs
			}
			s.countBooking("conflict")
			return nil, &SlotsUnavailableError{SlotIDs: unavailable}
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countBooking("success")
	logger.Info("予約を作成",
		zap.String("booking_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.Int("amount", b.Amount),
		zap.Time("expires_at", b.ExpiresAt),
	)
	return b, nil
}

// buildSlotLockKey はスロットIDからロックキーを生成（ソートしてデッドロック防止）
func (s *BookingService) buildSlotLockKey(slotIDs []string) string {
	return "slots:" + strings.Join(slotIDs, ",")
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

func (s *BookingService) GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.bookingRepo.GetByUserID(ctx, userID, limit, offset)
}

// CancelBooking はキャンセル期限ポリシーを適用して予約をキャンセルし、スロットを解放する
// actor が customer の場合は所有者確認を行う
func (s *BookingService) CancelBooking(ctx context.Context, id, userID string, actor booking.CancelActor) (*booking.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == booking.ActorCustomer && b.UserID != userID {
		return nil, booking.ErrNotBookingOwner
	}

	earliestStart, err := s.earliestSlotStart(ctx, b)
	if err != nil {
		return nil, err
	}

	prev := b.Status
	if err := b.Cancel(actor, earliestStart, time.Now(), s.cfg.CancelCutoff); err != nil {
		return nil, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.bookingRepo.Update(ctx, tx, b, prev); err != nil {
		return nil, err
	}
	if err := s.slotRepo.ReleaseSlots(ctx, tx, b.SlotIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	logger.Info("予約をキャンセル",
		zap.String("booking_id", b.ID),
		zap.String("cancelled_by", string(actor)),
	)
	return b, nil
}

// earliestSlotStart は予約スロットのうち最も早い開始時刻を返す
func (s *BookingService) earliestSlotStart(ctx context.Context, b *booking.Booking) (time.Time, error) {
	slots, err := s.slotRepo.GetByIDs(ctx, b.SlotIDs)
	if err != nil {
		return time.Time{}, fmt.Errorf("スロット取得に失敗: %w", err)
	}
	if len(slots) == 0 {
		return time.Time{}, slot.ErrSlotNotFound
	}
	var earliest time.Time
	for _, sl := range slots {
		start, err := sl.StartAt()
		if err != nil {
			return time.Time{}, err
		}
		if earliest.IsZero() || start.Before(earliest) {
			earliest = start
		}
	}
	return earliest, nil
}

// ExpireOverdueBookings は期限切れの支払い待ち予約を終端状態にしてスロットを解放する
// 予約ごとの compare-and-set のため、同時刻に支払い検証が確定させた予約はスキップされる
func (s *BookingService) ExpireOverdueBookings(ctx context.Context) (int, error) {
	overdue, err := s.bookingRepo.GetExpiredPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}

	count := 0
	for _, b := range overdue {
		if err := s.expireOne(ctx, b); err != nil {
			if errors.Is(err, booking.ErrBookingStateChanged) {
				// 検証側が先に確定させた。正常な競合なのでスキップ
				continue
			}
			logger.Error("予約の期限切れ処理に失敗",
				zap.String("booking_id", b.ID),
				zap.Error(err),
			)
			continue
		}
		count++
	}
	if count > 0 && s.metrics != nil {
		s.metrics.ExpiredBookingsTotal.Add(float64(count))
	}
	return count, nil
}

func (s *BookingService) expireOne(ctx context.Context, b *booking.Booking) error {
	if err := b.Expire(); err != nil {
		return err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.bookingRepo.Update(ctx, tx, b, booking.StatusPendingPayment); err != nil {
		return err
	}
	if err := s.slotRepo.ReleaseSlots(ctx, tx, b.SlotIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// ListSettlementBookings は下流の精算処理向けに期間内の確定・完了予約を返す
func (s *BookingService) ListSettlementBookings(ctx context.Context, from, to time.Time) ([]*booking.SettlementEntry, error) {
	return s.bookingRepo.ListConfirmedBetween(ctx, from, to)
}

func (s *BookingService) countBooking(status string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(status).Inc()
	}
}

func dedupeAndSort(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

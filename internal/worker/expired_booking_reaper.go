package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-turf-reservation/internal/pkg/logger"
)

// BookingExpirer は期限切れ予約を処理するインターフェース
type BookingExpirer interface {
	ExpireOverdueBookings(ctx context.Context) (int, error)
}

// ExpiredBookingReaper は期限切れの支払い待ち予約を解放するワーカー
// 期限は予約レコードの expires_at が持つため、プロセスを再起動しても
// 次のスイープで未処理の期限切れを回収できる
type ExpiredBookingReaper struct {
	bookingService BookingExpirer
	interval       time.Duration
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewExpiredBookingReaper は新しいリーパーを作成
func NewExpiredBookingReaper(bs BookingExpirer, interval time.Duration) *ExpiredBookingReaper {
	return &ExpiredBookingReaper{
		bookingService: bs,
		interval:       interval,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start はリーパーを開始
func (r *ExpiredBookingReaper) Start(ctx context.Context) {
	logger.Info("期限切れ予約リーパー開始",
		zap.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	// 起動直後に1回スイープして再起動中に溜まった期限切れを回収
	r.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れ予約リーパー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("期限切れ予約リーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// Stop はリーパーを停止
func (r *ExpiredBookingReaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// sweep は期限切れ予約を終端状態にしてスロットを解放する
func (r *ExpiredBookingReaper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れ予約のスイープ開始")

	count, err := r.bookingService.ExpireOverdueBookings(ctx)
	if err != nil {
		log.Error("期限切れ予約のスイープ失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("期限切れ予約を解放", zap.Int("count", count))
	} else {
		log.Debug("期限切れ予約なし")
	}
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-turf-reservation/internal/config"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-turf-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-turf-reservation/internal/pkg/metrics"
)

// PaymentService はゲートウェイ注文の作成と決済コールバックの検証を扱う
type PaymentService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	slotRepo    slot.Repository
	gateway     payment.Gateway
	verifier    payment.SignatureVerifier
	metrics     *metrics.Metrics
	currency    string
	verifyGrace time.Duration
}

func NewPaymentService(
	tm transaction.Manager,
	br booking.Repository,
	sr slot.Repository,
	gw payment.Gateway,
	sv payment.SignatureVerifier,
	m *metrics.Metrics,
	payCfg config.PaymentConfig,
	bookCfg config.BookingConfig,
) *PaymentService {
	return &PaymentService{
		txManager:   tm,
		bookingRepo: br,
		slotRepo:    sr,
		gateway:     gw,
		verifier:    sv,
		metrics:     m,
		currency:    payCfg.Currency,
		verifyGrace: bookCfg.VerifyGrace,
	}
}

// CreateOrder は支払い待ちの予約に対するゲートウェイ注文を作成する
// 予約状態は変更しないため、同じ予約に対して何度呼んでも安全
// 既に注文IDを持つ予約はその注文を返す
func (s *PaymentService) CreateOrder(ctx context.Context, bookingID, userID string) (*payment.Order, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, booking.ErrNotBookingOwner
	}
	if !b.IsPayable(time.Now(), 0) {
		return nil, payment.ErrBookingNotPayable
	}

	// 作成済み注文の再利用
	if b.GatewayOrderID != nil {
		return &payment.Order{
			BookingID:      b.ID,
			GatewayOrderID: *b.GatewayOrderID,
			Amount:         b.Amount,
			Currency:       s.currency,
			Receipt:        b.ID,
		}, nil
	}

	order, err := s.gateway.CreateOrder(ctx, b.Amount, s.currency, b.ID)
	if err != nil {
		return nil, err
	}
	order.BookingID = b.ID

	if err := s.bookingRepo.SetGatewayOrder(ctx, b.ID, order.GatewayOrderID); err != nil {
		if errors.Is(err, booking.ErrBookingStateChanged) {
			// 注文作成中に予約が期限切れ・キャンセルされた
			return nil, payment.ErrBookingNotPayable
		}
		return nil, err
	}

	logger.Info("ゲートウェイ注文を作成",
		zap.String("booking_id", b.ID),
		zap.String("gateway_order_id", order.GatewayOrderID),
		zap.Int("amount", order.Amount),
	)
	return order, nil
}

type VerifyPaymentInput struct {
	BookingID        string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// VerifyPayment はゲートウェイコールバックを検証し、予約を確定する
// 署名検証 → 注文ID照合 → compare-and-set の順で行い、
// 同一の正当なコールバックを二度受けても二度目は ErrBookingAlreadyFinalized になる
func (s *PaymentService) VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*booking.Booking, error) {
	// 署名検証が最初。失敗時は予約状態に一切触れない
	if !s.verifier.VerifySignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		s.countVerification("signature_mismatch")
		logger.Warn("決済署名の検証に失敗（改ざんの可能性）",
			zap.String("booking_id", input.BookingID),
			zap.String("gateway_order_id", input.GatewayOrderID),
			zap.String("gateway_payment_id", input.GatewayPaymentID),
		)
		return nil, payment.ErrSignatureMismatch
	}

	b, err := s.bookingRepo.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if b.GatewayOrderID == nil || *b.GatewayOrderID != input.GatewayOrderID {
		s.countVerification("order_mismatch")
		return nil, payment.ErrOrderMismatch
	}

	if err := b.Confirm(input.GatewayPaymentID, time.Now(), s.verifyGrace); err != nil {
		if errors.Is(err, booking.ErrBookingAlreadyFinalized) {
			s.countVerification("duplicate")
		} else {
			s.countVerification("expired")
		}
		return nil, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.bookingRepo.Update(ctx, tx, b, booking.StatusPendingPayment); err != nil {
		if errors.Is(err, booking.ErrBookingStateChanged) {
			// リーパーまたは重複コールバックに先を越された
			s.countVerification("lost_race")
			return nil, booking.ErrBookingAlreadyFinalized
		}
		return nil, err
	}
	if err := s.slotRepo.ConfirmSlots(ctx, tx, b.SlotIDs, b.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countVerification("success")
	logger.Info("支払いを検証し予約を確定",
		zap.String("booking_id", b.ID),
		zap.String("payment_id", input.GatewayPaymentID),
	)
	return b, nil
}

// HandlePaymentFailure はゲートウェイが失敗を通知した予約を終端状態にし、スロットを解放する
// 顧客は新しい予約でやり直せる
func (s *PaymentService) HandlePaymentFailure(ctx context.Context, bookingID, gatewayOrderID, reason string) (*booking.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GatewayOrderID == nil || *b.GatewayOrderID != gatewayOrderID {
		return nil, payment.ErrOrderMismatch
	}

	if err := b.MarkPaymentFailed(); err != nil {
		return nil, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.bookingRepo.Update(ctx, tx, b, booking.StatusPendingPayment); err != nil {
		if errors.Is(err, booking.ErrBookingStateChanged) {
			return nil, booking.ErrBookingAlreadyFinalized
		}
		return nil, err
	}
	if err := s.slotRepo.ReleaseSlots(ctx, tx, b.SlotIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countVerification("failed")
	logger.Info("支払い失敗により予約を終了",
		zap.String("booking_id", b.ID),
		zap.String("reason", reason),
	)
	return b, nil
}

func (s *PaymentService) countVerification(result string) {
	if s.metrics != nil {
		s.metrics.PaymentVerificationsTotal.WithLabelValues(result).Inc()
	}
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-turf-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/transaction"
)

type bookingRow struct {
	ID             string     `db:"id"`
	TurfID         string     `db:"turf_id"`
	UserID         string     `db:"user_id"`
	SlotDate       time.Time  `db:"slot_date"`
	SlotTotal      int        `db:"slot_total"`
	PlatformFee    int        `db:"platform_fee"`
	Amount         int        `db:"amount"`
	Status         string     `db:"status"`
	PaymentStatus  string     `db:"payment_status"`
	PaymentID      *string    `db:"payment_id"`
	GatewayOrderID *string    `db:"gateway_order_id"`
	ExpiresAt      time.Time  `db:"expires_at"`
	ConfirmedAt    *time.Time `db:"confirmed_at"`
	CancelledAt    *time.Time `db:"cancelled_at"`
	CancelledBy    *string    `db:"cancelled_by"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

const bookingColumns = `id, turf_id, user_id, slot_date, slot_total, platform_fee, amount, status, payment_status, payment_id, gateway_order_id, expires_at, confirmed_at, cancelled_at, cancelled_by, created_at, updated_at`

type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	query := `INSERT INTO bookings (turf_id, user_id, slot_date, slot_total, platform_fee, amount, status, payment_status, expires_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	if err := sqlxTx.QueryRowContext(ctx, query, b.TurfID, b.UserID, b.SlotDate, b.SlotTotal, b.PlatformFee, b.Amount, string(b.Status), string(b.PaymentStatus), b.ExpiresAt, b.CreatedAt, b.UpdatedAt).Scan(&b.ID); err != nil {
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	for _, slotID := range b.SlotIDs {
		if _, err := sqlxTx.ExecContext(ctx, `INSERT INTO booking_slots (booking_id, slot_id) VALUES ($1, $2)`, b.ID, slotID); err != nil {
			return fmt.Errorf("予約スロット関連付けに失敗: %w", err)
		}
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	slotIDs, err := r.getSlotIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.toEntity(&row, slotIDs), nil
}

func (r *BookingRepository) GetByGatewayOrderID(ctx context.Context, orderID string) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE gateway_order_id = $1`
	if err := r.db.GetContext(ctx, &row, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	slotIDs, err := r.getSlotIDs(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return r.toEntity(&row, slotIDs), nil
}

func (r *BookingRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return r.toEntities(ctx, rows)
}

// FindActivePendingByUserAndSlots は同一ユーザーの有効な支払い待ち予約のうち
// 指定スロットのいずれかを含むものを返す
func (r *BookingRepository) FindActivePendingByUserAndSlots(ctx context.Context, userID string, slotIDs []string) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT DISTINCT b.id, b.turf_id, b.user_id, b.slot_date, b.slot_total, b.platform_fee, b.amount, b.status, b.payment_status, b.payment_id, b.gateway_order_id, b.expires_at, b.confirmed_at, b.cancelled_at, b.cancelled_by, b.created_at, b.updated_at
		FROM bookings b
		JOIN booking_slots bs ON bs.booking_id = b.id
		WHERE b.user_id = $1 AND b.status = 'pending_payment' AND b.expires_at > NOW() AND bs.slot_id = ANY($2)
		LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, userID, pq.Array(slotIDs)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("支払い待ち予約の検索に失敗: %w", err)
	}
	ids, err := r.getSlotIDs(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return r.toEntity(&row, ids), nil
}

// Update は expected が現在の状態と一致する場合のみ更新する compare-and-set
// リーパー・検証・キャンセルが競合しても勝者は1つだけになる
func (r *BookingRepository) Update(ctx context.Context, tx transaction.Tx, b *booking.Booking, expected booking.Status) error {
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE bookings SET status = $1, payment_status = $2, payment_id = $3, confirmed_at = $4, cancelled_at = $5, cancelled_by = $6, updated_at = $7 WHERE id = $8 AND status = $9`
	result, err := sqlxTx.ExecContext(ctx, query, string(b.Status), string(b.PaymentStatus), b.PaymentID, b.ConfirmedAt, b.CancelledAt, b.CancelledBy, b.UpdatedAt, b.ID, string(expected))
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrBookingStateChanged
	}
	return nil
}

// SetGatewayOrder は支払い待ちの予約に限りゲートウェイ注文IDを記録する
func (r *BookingRepository) SetGatewayOrder(ctx context.Context, id, gatewayOrderID string) error {
	query := `UPDATE bookings SET gateway_order_id = $1, updated_at = NOW() WHERE id = $2 AND status = 'pending_payment'`
	result, err := r.db.ExecContext(ctx, query, gatewayOrderID, id)
	if err != nil {
		return fmt.Errorf("ゲートウェイ注文IDの記録に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrBookingStateChanged
	}
	return nil
}

func (r *BookingRepository) GetExpiredPending(ctx context.Context) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'pending_payment' AND expires_at < NOW()`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}
	return r.toEntities(ctx, rows)
}

type settlementRow struct {
	BookingID   string    `db:"booking_id"`
	TurfID      string    `db:"turf_id"`
	OwnerID     string    `db:"owner_id"`
	UserID      string    `db:"user_id"`
	SlotTotal   int       `db:"slot_total"`
	PlatformFee int       `db:"platform_fee"`
	Amount      int       `db:"amount"`
	Status      string    `db:"status"`
	ConfirmedAt time.Time `db:"confirmed_at"`
}

// ListConfirmedBetween は下流の精算処理向けに確定・完了予約を返す
func (r *BookingRepository) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]*booking.SettlementEntry, error) {
	var rows []settlementRow
	query := `SELECT b.id AS booking_id, b.turf_id, t.owner_id, b.user_id, b.slot_total, b.platform_fee, b.amount, b.status, b.confirmed_at
		FROM bookings b
		JOIN turfs t ON t.id = b.turf_id
		WHERE b.status IN ('confirmed', 'completed') AND b.confirmed_at >= $1 AND b.confirmed_at < $2
		ORDER BY b.confirmed_at`
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("精算対象予約の取得に失敗: %w", err)
	}
	entries := make([]*booking.SettlementEntry, len(rows))
	for i, row := range rows {
		entries[i] = &booking.SettlementEntry{
			BookingID: row.BookingID, TurfID: row.TurfID, OwnerID: row.OwnerID,
			UserID: row.UserID, SlotTotal: row.SlotTotal, PlatformFee: row.PlatformFee,
			Amount: row.Amount, Status: booking.Status(row.Status), ConfirmedAt: row.ConfirmedAt,
		}
	}
	return entries, nil
}

func (r *BookingRepository) getSlotIDs(ctx context.Context, bookingID string) ([]string, error) {
	var slotIDs []string
	if err := r.db.SelectContext(ctx, &slotIDs, `SELECT slot_id FROM booking_slots WHERE booking_id = $1 ORDER BY slot_id`, bookingID); err != nil {
		return nil, fmt.Errorf("スロットID取得に失敗: %w", err)
	}
	return slotIDs, nil
}

func (r *BookingRepository) toEntities(ctx context.Context, rows []bookingRow) ([]*booking.Booking, error) {
	result := make([]*booking.Booking, len(rows))
	for i, row := range rows {
		slotIDs, err := r.getSlotIDs(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		result[i] = r.toEntity(&row, slotIDs)
	}
	return result, nil
}

func (r *BookingRepository) toEntity(row *bookingRow, slotIDs []string) *booking.Booking {
	return &booking.Booking{
		ID: row.ID, TurfID: row.TurfID, UserID: row.UserID,
		SlotIDs: slotIDs, SlotDate: row.SlotDate,
		SlotTotal: row.SlotTotal, PlatformFee: row.PlatformFee, Amount: row.Amount,
		Status: booking.Status(row.Status), PaymentStatus: booking.PaymentStatus(row.PaymentStatus),
		PaymentID: row.PaymentID, GatewayOrderID: row.GatewayOrderID,
		ExpiresAt: row.ExpiresAt, ConfirmedAt: row.ConfirmedAt,
		CancelledAt: row.CancelledAt, CancelledBy: row.CancelledBy,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

var _ booking.Repository = (*BookingRepository)(nil)

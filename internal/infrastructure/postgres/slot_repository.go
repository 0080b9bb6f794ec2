package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-turf-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/transaction"
)

type slotRow struct {
	ID        string     `db:"id"`
	TurfID    string     `db:"turf_id"`
	Date      time.Time  `db:"slot_date"`
	StartTime string     `db:"start_time"`
	EndTime   string     `db:"end_time"`
	Status    string     `db:"status"`
	Price     int        `db:"price"`
	HeldBy    *string    `db:"held_by"`
	HeldAt    *time.Time `db:"held_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	Version   int        `db:"version"`
}

func (r *slotRow) toEntity() *slot.Slot {
	return &slot.Slot{
		ID: r.ID, TurfID: r.TurfID, Date: r.Date,
		StartTime: r.StartTime, EndTime: r.EndTime,
		Status: slot.Status(r.Status), Price: r.Price,
		HeldBy: r.HeldBy, HeldAt: r.HeldAt,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

const slotColumns = `id, turf_id, slot_date, start_time, end_time, status, price, held_by, held_at, created_at, updated_at, version`

type SlotRepository struct{ db *sqlx.DB }

func NewSlotRepository(db *sqlx.DB) *SlotRepository { return &SlotRepository{db: db} }

func (r *SlotRepository) Create(ctx context.Context, s *slot.Slot) error {
	query := `INSERT INTO slots (turf_id, slot_date, start_time, end_time, status, price, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	return r.db.QueryRowContext(ctx, query, s.TurfID, s.Date, s.StartTime, s.EndTime, string(s.Status), s.Price, s.CreatedAt, s.UpdatedAt, s.Version).Scan(&s.ID)
}

func (r *SlotRepository) CreateBulk(ctx context.Context, slots []*slot.Slot) error {
	if len(slots) == 0 {
		return nil
	}

	// バッチサイズごとに分割してマルチバリューINSERTを実行
	const batchSize = 500
	for i := 0; i < len(slots); i += batchSize {
		end := i + batchSize
		if end > len(slots) {
			end = len(slots)
		}
		if err := r.createBulkBatch(ctx, slots[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *SlotRepository) createBulkBatch(ctx context.Context, slots []*slot.Slot) error {
	query := `INSERT INTO slots (turf_id, slot_date, start_time, end_time, status, price, created_at, updated_at, version) VALUES `
	args := make([]interface{}, 0, len(slots)*9)
	placeholders := make([]string, 0, len(slots))

	for i, s := range slots {
		base := i * 9
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args, s.TurfID, s.Date, s.StartTime, s.EndTime, string(s.Status), s.Price, s.CreatedAt, s.UpdatedAt, s.Version)
	}

	query += strings.Join(placeholders, ", ")
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("スロット一括作成に失敗: %w", err)
	}
	return nil
}

func (r *SlotRepository) GetByID(ctx context.Context, id string) (*slot.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	var row slotRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, slot.ErrSlotNotFound
		}
		return nil, fmt.Errorf("スロット取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *SlotRepository) GetByIDs(ctx context.Context, ids []string) ([]*slot.Slot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = ANY($1) ORDER BY slot_date, start_time`
	var rows []slotRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("スロット取得に失敗: %w", err)
	}
	slots := make([]*slot.Slot, len(rows))
	for i, row := range rows {
		slots[i] = row.toEntity()
	}
	return slots, nil
}

func (r *SlotRepository) GetByTurfAndDate(ctx context.Context, turfID string, date time.Time) ([]*slot.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE turf_id = $1 AND slot_date = $2 ORDER BY start_time`
	var rows []slotRow
	if err := r.db.SelectContext(ctx, &rows, query, turfID, date); err != nil {
		return nil, err
	}
	slots := make([]*slot.Slot, len(rows))
	for i, row := range rows {
		slots[i] = row.toEntity()
	}
	return slots, nil
}

func (r *SlotRepository) GetAvailableByTurfAndDate(ctx context.Context, turfID string, date time.Time) ([]*slot.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE turf_id = $1 AND slot_date = $2 AND status = 'available' ORDER BY start_time`
	var rows []slotRow
	if err := r.db.SelectContext(ctx, &rows, query, turfID, date); err != nil {
		return nil, err
	}
	slots := make([]*slot.Slot, len(rows))
	for i, row := range rows {
		slots[i] = row.toEntity()
	}
	return slots, nil
}

// HoldSlots は対象スロット全件を単一の条件付きUPDATEで仮押さえする
// 更新行数が要求件数に満たない場合はロールバック前提で ErrSlotConflict を返し、
// 部分的な仮押さえを残さない
func (r *SlotRepository) HoldSlots(ctx context.Context, tx transaction.Tx, slotIDs []string, bookingID string) error {
	if len(slotIDs) == 0 {
		return nil
	}
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE slots SET status = 'held', held_by = $1, held_at = NOW(), updated_at = NOW(), version = version + 1 WHERE id = ANY($2) AND status = 'available'`
	result, err := sqlxTx.ExecContext(ctx, query, bookingID, pq.Array(slotIDs))
	if err != nil {
		return fmt.Errorf("スロット仮押さえに失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if int(rows) != len(slotIDs) {
		return slot.ErrSlotConflict
	}
	return nil
}

func (r *SlotRepository) GetUnavailable(ctx context.Context, slotIDs []string) ([]string, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	var ids []string
	query := `SELECT id FROM slots WHERE id = ANY($1) AND status <> 'available' ORDER BY slot_date, start_time`
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(slotIDs)); err != nil {
		return nil, fmt.Errorf("競合スロット取得に失敗: %w", err)
	}
	return ids, nil
}

// ConfirmSlots は指定予約が仮押さえしているスロットのみを確定する
func (r *SlotRepository) ConfirmSlots(ctx context.Context, tx transaction.Tx, slotIDs []string, bookingID string) error {
	if len(slotIDs) == 0 {
		return nil
	}
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE slots SET status = 'booked', updated_at = NOW(), version = version + 1 WHERE id = ANY($1) AND status = 'held' AND held_by = $2`
	result, err := sqlxTx.ExecContext(ctx, query, pq.Array(slotIDs), bookingID)
	if err != nil {
		return fmt.Errorf("スロット確定に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if int(rows) != len(slotIDs) {
		return slot.ErrSlotNotHeld
	}
	return nil
}

// ReleaseSlots は冪等な解放操作
// 既に available のスロットが含まれていてもエラーにしない
func (r *SlotRepository) ReleaseSlots(ctx context.Context, tx transaction.Tx, slotIDs []string) error {
	if len(slotIDs) == 0 {
		return nil
	}
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE slots SET status = 'available', held_by = NULL, held_at = NULL, updated_at = NOW(), version = version + 1 WHERE id = ANY($1) AND status <> 'available'`
	_, err := sqlxTx.ExecContext(ctx, query, pq.Array(slotIDs))
	return err
}

func (r *SlotRepository) CountAvailableByTurfAndDate(ctx context.Context, turfID string, date time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM slots WHERE turf_id = $1 AND slot_date = $2 AND status = 'available'`, turfID, date)
	return count, err
}

var _ slot.Repository = (*SlotRepository)(nil)

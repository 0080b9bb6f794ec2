package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-turf-reservation/internal/domain/turf"
)

type turfRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	OwnerID   string    `db:"owner_id"`
	Location  string    `db:"location"`
	OpenTime  string    `db:"open_time"`
	CloseTime string    `db:"close_time"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *turfRow) toEntity() *turf.Turf {
	return &turf.Turf{
		ID: r.ID, Name: r.Name, OwnerID: r.OwnerID, Location: r.Location,
		OpenTime: r.OpenTime, CloseTime: r.CloseTime,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

type TurfRepository struct{ db *sqlx.DB }

func NewTurfRepository(db *sqlx.DB) *TurfRepository { return &TurfRepository{db: db} }

func (r *TurfRepository) Create(ctx context.Context, t *turf.Turf) error {
	query := `INSERT INTO turfs (name, owner_id, location, open_time, close_time, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	return r.db.QueryRowContext(ctx, query, t.Name, t.OwnerID, t.Location, t.OpenTime, t.CloseTime, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
}

func (r *TurfRepository) GetByID(ctx context.Context, id string) (*turf.Turf, error) {
	var row turfRow
	query := `SELECT id, name, owner_id, location, open_time, close_time, created_at, updated_at FROM turfs WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, turf.ErrTurfNotFound
		}
		return nil, fmt.Errorf("ターフ取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TurfRepository) List(ctx context.Context, limit, offset int) ([]*turf.Turf, error) {
	var rows []turfRow
	query := `SELECT id, name, owner_id, location, open_time, close_time, created_at, updated_at FROM turfs ORDER BY name LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("ターフ一覧取得に失敗: %w", err)
	}
	turfs := make([]*turf.Turf, len(rows))
	for i, row := range rows {
		turfs[i] = row.toEntity()
	}
	return turfs, nil
}

var _ turf.Repository = (*TurfRepository)(nil)

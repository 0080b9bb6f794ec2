package turf

import "context"

// Repository はターフリポジトリのインターフェース
type Repository interface {
	// Create は新しいターフを作成する
	Create(ctx context.Context, t *Turf) error

	// GetByID はIDからターフを取得する
	GetByID(ctx context.Context, id string) (*Turf, error)

	// List はターフ一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Turf, error)
}

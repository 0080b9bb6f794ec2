package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// SlotCache はターフ・日付ごとの空きスロット数キャッシュを管理する
// あくまで画面表示用のスナップショットで、予約処理はこの値を信頼しない
type SlotCache struct {
	client *redis.Client
}

// NewSlotCache は新しいSlotCacheインスタンスを作成する
func NewSlotCache(client *redis.Client) *SlotCache {
	return &SlotCache{client: client}
}

// GetAvailableCount は空きスロット数をキャッシュから取得する
func (c *SlotCache) GetAvailableCount(ctx context.Context, turfID string, date time.Time) (int, error) {
	key := c.availableCountKey(turfID, date)
	val, err := c.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetAvailableCount は空きスロット数をキャッシュに保存する
func (c *SlotCache) SetAvailableCount(ctx context.Context, turfID string, date time.Time, count int, ttl time.Duration) error {
	key := c.availableCountKey(turfID, date)
	if err := c.client.Set(ctx, key, count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はターフ・日付のキャッシュを無効化する
// スロットの配置が変わる遷移（仮押さえ・解放・確定）の後に呼ぶ
func (c *SlotCache) Invalidate(ctx context.Context, turfID string, date time.Time) error {
	key := c.availableCountKey(turfID, date)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *SlotCache) availableCountKey(turfID string, date time.Time) string {
	return fmt.Sprintf("slots:available:%s:%s", turfID, date.Format("2006-01-02"))
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-turf-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/turf"
	redisinfra "github.com/sanosuguru/go-turf-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-turf-reservation/internal/pkg/logger"
)

const (
	slotCacheTTL = 30 * time.Second
)

// TurfService はカタログ参照と空き状況スナップショットを扱う
// 空き状況はUI表示用の楽観的な値で、予約処理はこの値を信頼しない
type TurfService struct {
	turfRepo turf.Repository
	slotRepo slot.Repository
	cache    *redisinfra.SlotCache
}

func NewTurfService(tr turf.Repository, sr slot.Repository, cache *redisinfra.SlotCache) *TurfService {
	return &TurfService{turfRepo: tr, slotRepo: sr, cache: cache}
}

type CreateTurfInput struct {
	Name      string
	OwnerID   string
	Location  string
	OpenTime  string
	CloseTime string
}

func (s *TurfService) CreateTurf(ctx context.Context, input CreateTurfInput) (*turf.Turf, error) {
	t := turf.NewTurf(input.Name, input.OwnerID, input.Location, input.OpenTime, input.CloseTime)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.turfRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TurfService) GetTurf(ctx context.Context, id string) (*turf.Turf, error) {
	return s.turfRepo.GetByID(ctx, id)
}

func (s *TurfService) ListTurfs(ctx context.Context, limit, offset int) ([]*turf.Turf, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.turfRepo.List(ctx, limit, offset)
}

type GenerateSlotsInput struct {
	TurfID string
	Date   time.Time
	Price  int
}

// GenerateDailySlots はターフの営業時間に沿って1時間刻みのスロットを一括作成する
func (s *TurfService) GenerateDailySlots(ctx context.Context, input GenerateSlotsInput) ([]*slot.Slot, error) {
	t, err := s.turfRepo.GetByID(ctx, input.TurfID)
	if err != nil {
		return nil, fmt.Errorf("ターフ取得に失敗: %w", err)
	}

	open, err := time.Parse("15:04", t.OpenTime)
	if err != nil {
		return nil, fmt.Errorf("営業開始時刻の解析に失敗: %w", err)
	}
	close, err := time.Parse("15:04", t.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("営業終了時刻の解析に失敗: %w", err)
	}

	var slots []*slot.Slot
	for cur := open; !cur.Add(time.Hour).After(close); cur = cur.Add(time.Hour) {
		sl := slot.NewSlot(input.TurfID, input.Date, cur.Format("15:04"), cur.Add(time.Hour).Format("15:04"), input.Price)
		if err := sl.Validate(); err != nil {
			return nil, err
		}
		slots = append(slots, sl)
	}
	if err := s.slotRepo.CreateBulk(ctx, slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *TurfService) GetSlots(ctx context.Context, turfID string, date time.Time) ([]*slot.Slot, error) {
	return s.slotRepo.GetByTurfAndDate(ctx, turfID, date)
}

func (s *TurfService) GetAvailableSlots(ctx context.Context, turfID string, date time.Time) ([]*slot.Slot, error) {
	return s.slotRepo.GetAvailableByTurfAndDate(ctx, turfID, date)
}

// PriceOf はスロットの現在のカタログ価格を返す
func (s *TurfService) PriceOf(ctx context.Context, turfID, slotID string) (int, error) {
	sl, err := s.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		return 0, err
	}
	if sl.TurfID != turfID {
		return 0, slot.ErrSlotNotFound
	}
	return sl.Price, nil
}

// IsAvailable はスロットの空き状況スナップショットを返す（表示用）
func (s *TurfService) IsAvailable(ctx context.Context, turfID, slotID string) (bool, error) {
	sl, err := s.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		return false, err
	}
	if sl.TurfID != turfID {
		return false, slot.ErrSlotNotFound
	}
	return sl.IsAvailable(), nil
}

// CountAvailableSlots はターフ・日付の空きスロット数を返す（キャッシュ付き）
func (s *TurfService) CountAvailableSlots(ctx context.Context, turfID string, date time.Time) (int, error) {
	// キャッシュから取得を試みる
	if s.cache != nil {
		count, err := s.cache.GetAvailableCount(ctx, turfID, date)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.String("turf_id", turfID), zap.Int("count", count))
			return count, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	// DBから取得
	count, err := s.slotRepo.CountAvailableByTurfAndDate(ctx, turfID, date)
	if err != nil {
		return 0, err
	}

	// キャッシュに保存
	if s.cache != nil {
		if cacheErr := s.cache.SetAvailableCount(ctx, turfID, date, count, slotCacheTTL); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}

	return count, nil
}

// InvalidateCache はターフ・日付のキャッシュを無効化する
func (s *TurfService) InvalidateCache(ctx context.Context, turfID string, date time.Time) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, turfID, date); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.Error(err))
		}
	}
}

package progress

import (
	"context"
	"time"
)

// ProgressManager 封装 Redis 进度判重与写入
type ProgressManager struct {
	redis           *RedisProgressStore
	recentThreshold time.Duration // 新 block 的判断阈值
}

func NewProgressManager(redis *RedisProgressStore, recentThresholdSec int) *ProgressManager {
	return &ProgressManager{
		redis:           redis,
		recentThreshold: time.Duration(recentThresholdSec) * time.Second,
	}
}

// ShouldProcessSlot 用于判断是否需要处理该 slot：
// - 如果 block 是“最近的”，直接处理
// - 否则查 Redis，已处理或已标记无效的跳过
func (pm *ProgressManager) ShouldProcessSlot(ctx context.Context, slot uint64, eventType EventType, blockTime int64) (bool, error) {
	if time.Since(time.Unix(blockTime, 0)) <= pm.recentThreshold {
		return true, nil // 近期 block，直接处理
	}

	status, err := pm.redis.GetSlotStatus(ctx, slot, eventType)
	if err != nil {
		return false, err
	}
	return status != SlotProcessed && status != SlotInvalid, nil
}

// MarkSlotStatus 标记某 slot 的处理状态（如已处理、结构非法等）
func (pm *ProgressManager) MarkSlotStatus(ctx context.Context, slot uint64, eventType EventType, status SlotStatus) error {
	switch status {
	case SlotProcessed:
		return pm.redis.MarkSlotProcessed(ctx, slot, eventType)
	case SlotInvalid:
		return pm.redis.MarkSlotInvalid(ctx, slot, eventType)
	case SlotPending:
		return pm.redis.MarkSlotPending(ctx, slot, eventType)
	default:
		return nil // SlotUnknown 不参与记录
	}
}

// Store 暴露底层 Redis store（用作运行时签名判重）
func (pm *ProgressManager) Store() *RedisProgressStore {
	return pm.redis
}

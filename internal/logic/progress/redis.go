package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bubblemap-bypass/internal/types"

	"github.com/redis/go-redis/v9"
)

// RedisProgressStore 管理 Redis 中的 slot 状态与已处理签名（幂等控制）
type RedisProgressStore struct {
	rdb *redis.Client
}

// Redis key 前缀
const (
	receiptPrefix   = "bypass:progress:receipt:slot"
	unknownPrefix   = "bypass:progress:unknown:slot"
	signaturePrefix = "bypass:progress:signature"
)

// TTL（可调）
const (
	receiptTTL   = 7 * 24 * time.Hour
	defaultTTL   = 24 * time.Hour
	signatureTTL = 48 * time.Hour // 超过 blockhash 有效期很多，足以覆盖重放窗口
)

// NewRedisProgressStore 创建 Redis 判重管理器
func NewRedisProgressStore(rdb *redis.Client) *RedisProgressStore {
	return &RedisProgressStore{rdb: rdb}
}

// getKey 构造 Redis key，按事件类型区分
func (r *RedisProgressStore) getKey(slot uint64, eventType EventType) string {
	var prefix string
	switch eventType {
	case EventReceipt:
		prefix = receiptPrefix
	default:
		prefix = unknownPrefix
	}
	return fmt.Sprintf("%s:%d", prefix, slot)
}

// getTTL 获取 Redis key 的 TTL，按事件类型区分
func (r *RedisProgressStore) getTTL(eventType EventType) time.Duration {
	switch eventType {
	case EventReceipt:
		return receiptTTL
	default:
		return defaultTTL
	}
}

// GetSlotStatus 获取 slot 的状态（Unknown / Processed / Invalid / Pending）
func (r *RedisProgressStore) GetSlotStatus(ctx context.Context, slot uint64, eventType EventType) (SlotStatus, error) {
	key := r.getKey(slot, eventType)
	val, err := r.rdb.Get(ctx, key).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return SlotUnknown, nil
	case err != nil:
		return SlotUnknown, fmt.Errorf("redis get error: %w", err)
	case val == int(SlotProcessed):
		return SlotProcessed, nil
	case val == int(SlotInvalid):
		return SlotInvalid, nil
	case val == int(SlotPending):
		return SlotPending, nil
	default:
		return SlotUnknown, nil // 容错处理
	}
}

// MarkSlotStatus 通用设置 slot 的状态
func (r *RedisProgressStore) MarkSlotStatus(ctx context.Context, slot uint64, eventType EventType, status SlotStatus) error {
	key := r.getKey(slot, eventType)
	ttl := r.getTTL(eventType)
	return r.rdb.Set(ctx, key, int(status), ttl).Err()
}

// MarkSlotProcessed 标记 slot 为已处理
func (r *RedisProgressStore) MarkSlotProcessed(ctx context.Context, slot uint64, eventType EventType) error {
	return r.MarkSlotStatus(ctx, slot, eventType, SlotProcessed)
}

// MarkSlotInvalid 标记 slot 为无效（结构失败、跳过）
func (r *RedisProgressStore) MarkSlotInvalid(ctx context.Context, slot uint64, eventType EventType) error {
	return r.MarkSlotStatus(ctx, slot, eventType, SlotInvalid)
}

// MarkSlotPending 标记 slot 为正在处理（幂等控制）
func (r *RedisProgressStore) MarkSlotPending(ctx context.Context, slot uint64, eventType EventType) error {
	return r.MarkSlotStatus(ctx, slot, eventType, SlotPending)
}

// MarkProcessed 实现 runtime.SignatureStore：SETNX 成功表示首次出现
func (r *RedisProgressStore) MarkProcessed(ctx context.Context, sig types.Signature) (bool, error) {
	key := fmt.Sprintf("%s:%s", signaturePrefix, sig)
	ok, err := r.rdb.SetNX(ctx, key, 1, signatureTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx error: %w", err)
	}
	return ok, nil
}

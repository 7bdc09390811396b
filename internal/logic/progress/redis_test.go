package progress

import (
	"context"
	"os"
	"testing"
	"time"

	"bubblemap-bypass/internal/types"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要本地 Redis（默认 127.0.0.1:6379，可用 REDIS_ADDR 覆盖），不可达时跳过
func newTestStore(t *testing.T) *RedisProgressStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisProgressStore(rdb)
}

func TestRedisProgressStore_SlotStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	slot := uint64(time.Now().UnixNano())

	status, err := store.GetSlotStatus(ctx, slot, EventReceipt)
	require.NoError(t, err)
	assert.Equal(t, SlotUnknown, status)

	require.NoError(t, store.MarkSlotProcessed(ctx, slot, EventReceipt))
	status, err = store.GetSlotStatus(ctx, slot, EventReceipt)
	require.NoError(t, err)
	assert.Equal(t, SlotProcessed, status)

	// 不同事件类型互不影响
	status, err = store.GetSlotStatus(ctx, slot, EventSlot)
	require.NoError(t, err)
	assert.Equal(t, SlotUnknown, status)
}

func TestRedisProgressStore_MarkProcessed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var sig types.Signature
	copy(sig[:], []byte(time.Now().Format(time.RFC3339Nano)))

	fresh, err := store.MarkProcessed(ctx, sig)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkProcessed(ctx, sig)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestProgressManager_ShouldProcessSlot(t *testing.T) {
	store := newTestStore(t)
	pm := NewProgressManager(store, 60)
	ctx := context.Background()
	slot := uint64(time.Now().UnixNano())
	oldBlockTime := time.Now().Add(-time.Hour).Unix()

	// 近期 block 直接处理
	ok, err := pm.ShouldProcessSlot(ctx, slot, EventReceipt, time.Now().Unix())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pm.ShouldProcessSlot(ctx, slot, EventReceipt, oldBlockTime)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, pm.MarkSlotStatus(ctx, slot, EventReceipt, SlotProcessed))
	ok, err = pm.ShouldProcessSlot(ctx, slot, EventReceipt, oldBlockTime)
	require.NoError(t, err)
	assert.False(t, ok)
}

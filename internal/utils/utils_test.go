package utils

import (
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestParallelMap(t *testing.T) {
	// 测试空输入
	t.Run("empty input", func(t *testing.T) {
		var emptyInput []int
		result := ParallelMap(emptyInput, 4, func(i int) int { return i * 2 })
		assert.Empty(t, result)
	})

	// 测试单元素输入 - 应该直接处理，不使用并发
	t.Run("single input", func(t *testing.T) {
		result := ParallelMap([]int{42}, 4, func(i int) int { return i * 2 })
		assert.Equal(t, []int{84}, result)
	})

	// 测试多元素输入 - 确保顺序正确
	t.Run("multiple inputs with order", func(t *testing.T) {
		result := ParallelMap([]int{1, 2, 3, 4, 5}, 3, func(i int) int {
			time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
			return i * 2
		})
		assert.Equal(t, []int{2, 4, 6, 8, 10}, result)
	})

	// 测试并发上限
	t.Run("bounded concurrency", func(t *testing.T) {
		input := make([]int, 100)
		var maxConcurrent, current int32
		ParallelMap(input, 10, func(int) int {
			c := atomic.AddInt32(&current, 1)
			for {
				m := atomic.LoadInt32(&maxConcurrent)
				if c <= m || atomic.CompareAndSwapInt32(&maxConcurrent, m, c) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&current, -1)
			return 0
		})
		assert.LessOrEqual(t, atomic.LoadInt32(&maxConcurrent), int32(10))
	})
}

func TestPartitionHashBytes(t *testing.T) {
	b := make([]byte, 64)
	for i := range b {
		b[i] = byte(i * 7)
	}
	for _, mod := range []uint32{2, 3, 4, 7, 16} {
		assert.Less(t, PartitionHashBytes(b, mod), mod)
	}
	// 过短或单分区总是 0
	assert.Zero(t, PartitionHashBytes(b[:10], 4))
	assert.Zero(t, PartitionHashBytes(b, 1))
}

func TestCalcCapPerPartition(t *testing.T) {
	assert.Equal(t, 100, CalcCapPerPartition(100, 1, 10))
	assert.Equal(t, 50, CalcCapPerPartition(100, 2, 10))
	assert.Equal(t, 30, CalcCapPerPartition(100, 10, 10))
	assert.Equal(t, 10, CalcCapPerPartition(1, 10, 10))
}

func TestEventCodec(t *testing.T) {
	msg, err := structpb.NewStruct(map[string]any{"slot": 42, "status": "success"})
	require.NoError(t, err)

	data, err := EncodeEvent(7, msg)
	require.NoError(t, err)

	var out structpb.Struct
	eventType, err := DecodeEvent(data, &out)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), eventType)
	assert.Equal(t, float64(42), out.Fields["slot"].GetNumberValue())
	assert.Equal(t, "success", out.Fields["status"].GetStringValue())

	_, err = DecodeEvent([]byte{1}, &out)
	assert.Error(t, err)
}

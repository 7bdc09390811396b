package jobbuilder

import (
	"fmt"

	"bubblemap-bypass/internal/consts"
	"bubblemap-bypass/internal/mq"
	"bubblemap-bypass/internal/pkg/logger"
	"bubblemap-bypass/internal/program"
	"bubblemap-bypass/internal/runtime"
	"bubblemap-bypass/internal/utils"

	"google.golang.org/protobuf/types/known/structpb"
)

// EventTypeReceipts 是 receipt 批次消息的事件类型前缀
const EventTypeReceipts uint32 = 1

const receiptsVersion = 1

// BuildReceiptKafkaJobs 按交易签名把 receipt 分配到分区，每个分区聚合为一条消息。
// 构建后的 []*mq.KafkaJob 可直接传入 mq.SendKafkaJobs 发送。
func BuildReceiptKafkaJobs(
	slot uint64,
	blockTime int64,
	topic string,
	partitions int,
	receipts []*runtime.Receipt,
) []*mq.KafkaJob {
	if partitions <= 0 {
		partitions = 1
	}
	if len(receipts) == 0 {
		return nil
	}

	// 按分区初始化 buckets
	buckets := make([][]any, partitions)
	capacity := utils.CalcCapPerPartition(len(receipts), partitions, 4)
	for i := range buckets {
		buckets[i] = make([]any, 0, capacity)
	}

	for _, r := range receipts {
		pid := utils.PartitionHashBytes(r.Signature[:], uint32(partitions))
		buckets[pid] = append(buckets[pid], ReceiptToMap(r))
	}

	jobs := make([]*mq.KafkaJob, 0, partitions)
	for pid, list := range buckets {
		if len(list) == 0 {
			continue
		}
		msg, err := structpb.NewStruct(map[string]any{
			"version":    receiptsVersion,
			"chain_id":   consts.ChainIDSolana,
			"slot":       slot,
			"block_time": blockTime,
			"receipts":   list,
		})
		if err != nil {
			logger.Errorf("[jobbuilder::BuildReceiptKafkaJobs] build struct slot=%d partition=%d: %v", slot, pid, err)
			continue
		}
		value, err := utils.EncodeEvent(EventTypeReceipts, msg)
		if err != nil {
			logger.Errorf("[jobbuilder::BuildReceiptKafkaJobs] encode slot=%d partition=%d: %v", slot, pid, err)
			continue
		}
		jobs = append(jobs, &mq.KafkaJob{
			Topic:     topic,
			Partition: int32(pid),
			Key:       []byte(fmt.Sprintf("%d", slot)),
			Value:     value,
		})
	}
	return jobs
}

// ReceiptToMap 把 receipt 转为 structpb 可接受的通用结构
func ReceiptToMap(r *runtime.Receipt) map[string]any {
	logs := make([]any, 0, len(r.LogMessages))
	for _, line := range r.LogMessages {
		logs = append(logs, line)
	}

	out := map[string]any{
		"signature":         r.Signature.String(),
		"slot":              r.Slot,
		"status":            r.Status.String(),
		"instruction_index": r.InstructionIndex,
		"logs":              logs,
	}
	if r.Err != nil {
		out["error"] = r.Err.Error()
		if code, ok := program.CodeOf(r.Err); ok {
			out["error_code"] = uint32(code)
		}
	}
	return out
}

package grpc

import (
	"context"
	"errors"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"bubblemap-bypass/internal/consts"
	"bubblemap-bypass/internal/logic/jobbuilder"
	"bubblemap-bypass/internal/logic/parser"
	"bubblemap-bypass/internal/logic/progress"
	"bubblemap-bypass/internal/mq"
	"bubblemap-bypass/internal/runtime"
	"bubblemap-bypass/internal/svc"
	"bubblemap-bypass/internal/types"
	"bubblemap-bypass/internal/utils"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/logx"
)

// SlotGuard 是 slot 级别的进度判重，*progress.ProgressManager 满足该接口
type SlotGuard interface {
	ShouldProcessSlot(ctx context.Context, slot uint64, eventType progress.EventType, blockTime int64) (bool, error)
	MarkSlotStatus(ctx context.Context, slot uint64, eventType progress.EventType, status progress.SlotStatus) error
}

type BlockProcessor struct {
	programID   types.Pubkey
	runtime     *runtime.Runtime
	producer    mq.Producer
	guard       SlotGuard
	topic       string
	partitions  int
	slotTimeout time.Duration // 单个 slot 的处理上限（回放 + Kafka + Redis）
	sendTimeout time.Duration // 单条 Kafka 消息的 ack 超时
	blockChan   chan *pb.SubscribeUpdateBlock // 接收 block 的 channel
	ctx         context.Context
	cancel      func(err error)
	logx.Logger
}

// ReplayResult 是单笔交易的回放结果
type ReplayResult struct {
	TxIndex        uint64
	Receipt        *runtime.Receipt
	ChainSucceeded bool
	LogsMatch      bool // 本程序输出的 "Program log:" 行与链上一致
}

// Diverged 表示本地回放结果与链上结果不一致。
// 链上失败时可能是同一交易中其他程序的指令失败，此时只比较状态。
func (r ReplayResult) Diverged() bool {
	if r.Receipt.Succeeded() != r.ChainSucceeded {
		return true
	}
	return r.ChainSucceeded && !r.LogsMatch
}

// programLogs 提取 programID 顶层调用区间内的 "Program log:" 行，
// CPI 深层调用与 compute units 等运行时行不参与比较
func programLogs(lines []string, programID string) []string {
	invoke := "Program " + programID + " invoke [1]"
	success := "Program " + programID + " success"
	failed := "Program " + programID + " failed"

	var out []string
	depth := 0
	for _, line := range lines {
		switch {
		case line == invoke:
			depth = 1
		case depth == 0:
		case line == success || strings.HasPrefix(line, failed):
			depth = 0
		case strings.HasPrefix(line, "Program ") && strings.Contains(line, " invoke ["):
			depth++
		case depth > 1 && (strings.HasSuffix(line, " success") || strings.Contains(line, " failed")):
			depth--
		case depth == 1 && strings.HasPrefix(line, "Program log: "):
			out = append(out, line)
		}
	}
	return out
}

func logsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func NewBlockProcessor(sc *svc.ReplayServiceContext, blockChan chan *pb.SubscribeUpdateBlock) *BlockProcessor {
	c := sc.Config
	return newBlockProcessor(
		sc.Program.ID(),
		sc.Runtime,
		sc.Producer,
		sc.ProgressManager,
		c.KafkaProducerConf.Topics.Receipt,
		c.KafkaProducerConf.Partitions.Receipt,
		time.Duration(c.TimeConf.SlotDispatchTimeoutMs)*time.Millisecond,
		time.Duration(c.TimeConf.EventSendTimeoutMs)*time.Millisecond,
		blockChan,
	)
}

func newBlockProcessor(
	programID types.Pubkey,
	rt *runtime.Runtime,
	producer mq.Producer,
	guard SlotGuard,
	topic string,
	partitions int,
	slotTimeout, sendTimeout time.Duration,
	blockChan chan *pb.SubscribeUpdateBlock,
) *BlockProcessor {
	ctx, cancel := context.WithCancelCause(context.Background())
	if slotTimeout <= 0 {
		slotTimeout = 3 * time.Second
	}
	if sendTimeout <= 0 {
		sendTimeout = time.Second
	}
	return &BlockProcessor{
		programID:   programID,
		runtime:     rt,
		producer:    producer,
		guard:       guard,
		topic:       topic,
		partitions:  partitions,
		slotTimeout: slotTimeout,
		sendTimeout: sendTimeout,
		blockChan:   blockChan,
		Logger:      logx.WithContext(ctx).WithFields(logx.Field("service", "block_processor")),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *BlockProcessor) Start() {
	for {
		select {
		case <-p.ctx.Done():
			return // 退出
		case block, ok := <-p.blockChan:
			if !ok {
				return
			}
			p.procBlock(block)
			if len(p.blockChan) > 10 {
				p.Debugf("block chan len:%v", len(p.blockChan))
			}
		}
	}
}

func (p *BlockProcessor) Stop() {
	p.cancel(errors.New("service stop"))
}

func (p *BlockProcessor) procBlock(block *pb.SubscribeUpdateBlock) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(p.ctx, p.slotTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.Errorf("procBlock panic, slot=%d: %v\n%s", block.Slot, r, debug.Stack())
			// 结构异常的区块标记为无效，避免重复处理
			p.markSlot(ctx, block.Slot, progress.SlotInvalid)
		}
		p.Debugf("区块处理总耗时: %v, slot: %d", time.Since(startTime), block.Slot)
	}()

	var blockTime int64
	if block.BlockTime != nil {
		blockTime = block.BlockTime.Timestamp
	}

	// 1. 判重：历史 slot 已处理或无效则跳过
	should, err := p.guard.ShouldProcessSlot(ctx, block.Slot, progress.EventReceipt, blockTime)
	if err != nil {
		p.Errorf("ShouldProcessSlot error, slot=%d: %v", block.Slot, err)
		return
	}
	if !should {
		p.Debugf("slot %d already handled, skip", block.Slot)
		return
	}

	// 2. 标记处理中，回放
	p.markSlot(ctx, block.Slot, progress.SlotPending)
	results := p.ReplayBlock(ctx, block)
	if len(results) == 0 {
		p.markSlot(ctx, block.Slot, progress.SlotProcessed)
		return
	}

	receipts := make([]*runtime.Receipt, 0, len(results))
	diverged := 0
	for _, r := range results {
		receipts = append(receipts, r.Receipt)
		if r.Diverged() {
			diverged++
			p.Errorf("replay diverged: slot=%d tx=%s local=%s chain_ok=%v logs_match=%v err=%v",
				block.Slot, r.Receipt.Signature, r.Receipt.Status, r.ChainSucceeded, r.LogsMatch, r.Receipt.Err)
		}
	}

	// 3. 构建并发送 Kafka 消息
	jobs := jobbuilder.BuildReceiptKafkaJobs(block.Slot, blockTime, p.topic, p.partitions, receipts)
	_, failed := mq.SendKafkaJobs(ctx, p.producer, jobs, p.sendTimeout)
	if len(failed) > 0 {
		for _, f := range failed {
			p.Errorf("send receipt job failed, slot=%d partition=%d: %v", block.Slot, f.Job.Partition, f.Err)
		}
		// 保持未标记，等待后续重推
		return
	}

	p.Infof("slot %d replayed: txs=%d receipts=%d diverged=%d jobs=%d",
		block.Slot, len(block.Transactions), len(receipts), diverged, len(jobs))
	p.markSlot(ctx, block.Slot, progress.SlotProcessed)
}

// ReplayBlock 并发解析区块中的交易，按交易在区块内的顺序依次在本地运行时中回放
func (p *BlockProcessor) ReplayBlock(ctx context.Context, block *pb.SubscribeUpdateBlock) []ReplayResult {
	translated := utils.ParallelMap(block.Transactions, consts.CpuCount+2,
		func(tx *pb.SubscribeUpdateTransactionInfo) *parser.ReplayTx {
			rtx, err := parser.TranslateGrpcTx(block.Slot, tx, p.programID)
			if err != nil {
				p.Debugf("skip tx, slot=%d: %v", block.Slot, err)
				return nil
			}
			return rtx
		})

	txs := make([]*parser.ReplayTx, 0, len(translated))
	for _, rtx := range translated {
		if rtx != nil {
			txs = append(txs, rtx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].TxIndex < txs[j].TxIndex })

	programID := p.programID.String()
	results := make([]ReplayResult, 0, len(txs))
	for _, rtx := range txs {
		receipt, err := p.runtime.Execute(ctx, rtx.Tx)
		if err != nil {
			p.Errorf("execute tx %s: %v", rtx.Tx.Signature, err)
			continue
		}
		results = append(results, ReplayResult{
			TxIndex:        rtx.TxIndex,
			Receipt:        receipt,
			ChainSucceeded: rtx.ChainSucceeded,
			LogsMatch:      logsEqual(programLogs(receipt.LogMessages, programID), programLogs(rtx.ChainLogs, programID)),
		})
	}
	return results
}

func (p *BlockProcessor) markSlot(ctx context.Context, slot uint64, status progress.SlotStatus) {
	if err := p.guard.MarkSlotStatus(ctx, slot, progress.EventReceipt, status); err != nil {
		p.Errorf("MarkSlotStatus error, slot=%d: %v", slot, err)
	}
}

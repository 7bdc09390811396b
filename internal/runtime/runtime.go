package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bubblemap-bypass/internal/pkg/logger"
	"bubblemap-bypass/internal/program"
	"bubblemap-bypass/internal/types"
)

// 宿主运行时在调用程序前做的结构性拒绝
var (
	ErrProgramNotFound  = errors.New("program not found")
	ErrMissingSignature = errors.New("missing required signature")
	ErrAlreadyProcessed = errors.New("transaction already processed")
	ErrEmptyTransaction = errors.New("transaction has no instructions")
)

// Processor 是可被运行时调用的链上程序
type Processor interface {
	ID() types.Pubkey
	Process(ix program.RawInstruction, logs *program.Logs) error
}

// SignatureStore 记录已处理的交易签名，MarkProcessed 返回 false 表示签名已存在
type SignatureStore interface {
	MarkProcessed(ctx context.Context, sig types.Signature) (bool, error)
}

// Transaction 是提交给运行时的一笔交易
type Transaction struct {
	Signature    types.Signature
	Signers      []types.Pubkey
	Instructions []program.RawInstruction
	Slot         uint64 // 为 0 时由运行时分配
}

type Option func(*Runtime)

// WithSignatureStore 启用签名判重；不设置时不做判重（历史回放场景）
func WithSignatureStore(store SignatureStore) Option {
	return func(r *Runtime) {
		r.store = store
	}
}

// Runtime 是本地宿主运行时：按程序地址路由指令，一次只执行一笔交易，
// 第一条失败的指令使整笔交易失败（全有或全无）。
type Runtime struct {
	mu       sync.Mutex
	programs map[types.Pubkey]Processor
	store    SignatureStore
	slot     uint64
}

func New(opts ...Option) *Runtime {
	r := &Runtime{
		programs: make(map[types.Pubkey]Processor),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register 注册一个程序，同地址重复注册时后者覆盖前者
func (r *Runtime) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[p.ID()] = p
}

// Execute 执行一笔交易。
// 交易被拒绝时返回 Status=StatusFailed 的 Receipt 且 error 为 nil；
// error 只表示基础设施故障（如签名存储不可用）。
func (r *Runtime) Execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := tx.Slot
	if slot == 0 {
		r.slot++
		slot = r.slot
	} else if slot > r.slot {
		r.slot = slot
	}

	receipt := &Receipt{
		Signature:        tx.Signature,
		Slot:             slot,
		Status:           StatusSuccess,
		InstructionIndex: -1,
	}

	if err := r.sanitize(tx); err != nil {
		receipt.fail(-1, err)
		return receipt, nil
	}

	if r.store != nil {
		fresh, err := r.store.MarkProcessed(ctx, tx.Signature)
		if err != nil {
			return nil, fmt.Errorf("mark signature %s: %w", tx.Signature, err)
		}
		if !fresh {
			receipt.fail(-1, ErrAlreadyProcessed)
			return receipt, nil
		}
	}

	logs := &program.Logs{}
	for i, ix := range tx.Instructions {
		p, ok := r.programs[ix.ProgramID]
		if !ok {
			receipt.fail(i, fmt.Errorf("%w: %s", ErrProgramNotFound, ix.ProgramID))
			break
		}

		logs.Append(fmt.Sprintf("Program %s invoke [1]", ix.ProgramID))
		if err := p.Process(ix, logs); err != nil {
			logs.Append(fmt.Sprintf("Program %s failed: %s", ix.ProgramID, describeError(err)))
			receipt.fail(i, err)
			break
		}
		logs.Append(fmt.Sprintf("Program %s success", ix.ProgramID))
	}
	receipt.LogMessages = logs.Lines()

	if receipt.Err != nil {
		logger.Debugf("[runtime::Execute] tx=%s slot=%d failed at ix=%d: %v",
			tx.Signature, slot, receipt.InstructionIndex, receipt.Err)
	}
	return receipt, nil
}

// sanitize 对应链上交易的结构检查：指令非空，带 signer 标记的账户必须出现在签名者列表中
func (r *Runtime) sanitize(tx *Transaction) error {
	if len(tx.Instructions) == 0 {
		return ErrEmptyTransaction
	}

	signers := make(map[types.Pubkey]struct{}, len(tx.Signers))
	for _, s := range tx.Signers {
		signers[s] = struct{}{}
	}
	for i, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if !meta.IsSigner {
				continue
			}
			if _, ok := signers[meta.Pubkey]; !ok {
				return fmt.Errorf("%w: instruction %d account %s", ErrMissingSignature, i, meta.Pubkey)
			}
		}
	}
	return nil
}

// describeError 生成与链上一致的失败描述：程序错误显示为 custom program error
func describeError(err error) string {
	if code, ok := program.CodeOf(err); ok {
		return fmt.Sprintf("custom program error: 0x%x", uint32(code))
	}
	return err.Error()
}

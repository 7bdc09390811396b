package program

import (
	"runtime/debug"

	"bubblemap-bypass/internal/consts"
	"bubblemap-bypass/internal/pkg/logger"
	"bubblemap-bypass/internal/types"
)

// Program 是指令分发器：Received -> Dispatched -> Completed | Rejected，
// 每次调用都是一次无状态的单步转换，不持有任何可变状态。
type Program struct {
	id types.Pubkey
}

// New 创建绑定到指定地址的程序
func New(id types.Pubkey) *Program {
	return &Program{id: id}
}

// Default 返回绑定到固定程序地址的实例
func Default() *Program {
	return New(consts.BubblemapBypassProgram)
}

func (p *Program) ID() types.Pubkey {
	return p.id
}

// Process 是程序入口：校验程序地址、解码指令、分发
func (p *Program) Process(raw RawInstruction, logs *Logs) error {
	if raw.ProgramID != p.id {
		return newError(CodeDeclaredProgramIdMismatch, "declared %s, got %s", p.id, raw.ProgramID)
	}

	ix, err := DecodeInstruction(raw.Data, raw.Accounts)
	if err != nil {
		logs.Msg("Error: %v", err)
		return err
	}
	return p.Dispatch(ix, logs)
}

// Dispatch 先按声明形状校验账户，再调用唯一对应的 handler
func (p *Program) Dispatch(ix Instruction, logs *Logs) (err error) {
	if ix == nil {
		return newError(CodeUnknownInstruction, "nil instruction")
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[program::Dispatch] panic ix=%s: %+v\nstack: %s", ix.Name(), r, debug.Stack())
			err = newError(CodeHandlerPanicked, "%s: %v", ix.Name(), r)
		}
	}()

	logs.Msg("Instruction: %s", ix.Name())

	if err := ix.Shape().Validate(ix.AccountMetas()); err != nil {
		logs.Msg("Error: %v", err)
		return err
	}

	ctx := &Context{
		ProgramID: p.id,
		Accounts:  ix.AccountMetas(),
		Logs:      logs,
	}
	switch v := ix.(type) {
	case *Initialize:
		return handleInitialize(ctx, v)
	case *Bypass:
		return handleBypass(ctx, v)
	default:
		return newError(CodeUnknownInstruction, "no handler for %T", ix)
	}
}

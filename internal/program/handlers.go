package program

import "bubblemap-bypass/internal/types"

// Context 是传入 handler 的执行上下文，Accounts 已经按声明形状校验过
type Context struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Logs      *Logs
}

func handleInitialize(ctx *Context, _ *Initialize) error {
	ctx.Logs.Msg("Bubblemap Bypass Program Initialized")
	return nil
}

// handleBypass 目前只记录日志。bypass 的业务语义尚未定义，不在此推测实现。
func handleBypass(ctx *Context, _ *Bypass) error {
	ctx.Logs.Msg("Bypass executed")
	return nil
}

package consts

import (
	"bubblemap-bypass/internal/types"
)

// 公钥形式的地址常量（types.Pubkey），用于链上比对
var (
	BubblemapBypassProgram types.Pubkey

	SystemProgram          types.Pubkey
	ComputeBudgetProgramId types.Pubkey
)

// init 自动将 base58 字符串地址转换为 types.Pubkey
func init() {
	BubblemapBypassProgram = types.PubkeyFromBase58(BubblemapBypassProgramStr)

	SystemProgram = types.PubkeyFromBase58(SystemProgramStr)
	ComputeBudgetProgramId = types.PubkeyFromBase58(ComputeBudgetProgramIdStr)
}

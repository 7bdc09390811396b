package consts

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// BubblemapBypassProgramStr 是本程序的固定地址，部署后不可变
	BubblemapBypassProgramStr = "BubbmapBypass111111111111111111111111111111"

	// Programs
	SystemProgramStr          = "11111111111111111111111111111111"
	ComputeBudgetProgramIdStr = "ComputeBudget111111111111111111111111111111"
)

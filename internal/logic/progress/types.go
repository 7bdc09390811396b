package progress

// SlotStatus 表示 slot 的处理状态
type SlotStatus int

const (
	SlotUnknown   SlotStatus = 0 // Redis 不存在
	SlotProcessed SlotStatus = 1 // ✅ 已处理成功
	SlotInvalid   SlotStatus = 2 // ❌ 明确结构错误、跳过
	SlotPending   SlotStatus = 3 // 🕒 Redis 标记中，暂未完成
)

// EventType 表示不同类型的进度事件（用于区分 Redis key）
type EventType int

const (
	EventSlot    EventType = 0
	EventReceipt EventType = 1 // 回放程序指令并投递 receipt
)

package consts

// 指令 discriminator：sha256("global:<name>") 的前 8 字节，按大端读为 uint64
// 来源：Anchor 的 sighash 约定
const (
	InitializeDiscriminator uint64 = 0xafaf6d1f0d989bed
	BypassDiscriminator     uint64 = 0xa508547c8fef6845
)

// DiscriminatorSize 是指令 data 前缀的字节数
const DiscriminatorSize = 8

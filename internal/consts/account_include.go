package consts

// GrpcAccountInclude 用于 Yellowstone gRPC 区块订阅过滤器，
// 只推送涉及本程序地址的交易
var GrpcAccountInclude = []string{
	BubblemapBypassProgramStr,
}

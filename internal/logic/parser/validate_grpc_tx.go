package parser

import (
	"fmt"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// ValidateGrpcTx 检查回放所需的字段是否齐全。
// 链上执行失败的交易同样需要回放（用于一致性比对），因此不过滤 Meta.Err。
func ValidateGrpcTx(tx *pb.SubscribeUpdateTransactionInfo) error {
	if tx == nil {
		return fmt.Errorf("nil transaction info")
	}
	if tx.Transaction == nil {
		return fmt.Errorf("missing Transaction field")
	}
	if tx.Transaction.Message == nil {
		return fmt.Errorf("missing Message field in transaction")
	}
	if tx.Transaction.Message.Header == nil {
		return fmt.Errorf("missing message header")
	}
	if len(tx.Transaction.Signatures) == 0 {
		return fmt.Errorf("missing transaction signature")
	}
	if len(tx.Transaction.Signatures[0]) != 64 {
		return fmt.Errorf("invalid transaction signature length: %d", len(tx.Transaction.Signatures[0]))
	}
	if tx.IsVote {
		return fmt.Errorf("vote transaction skipped")
	}
	if tx.Meta == nil {
		return fmt.Errorf("missing transaction meta data")
	}
	return nil
}

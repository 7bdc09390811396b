package parser

import (
	"fmt"

	"bubblemap-bypass/internal/program"
	"bubblemap-bypass/internal/runtime"
	"bubblemap-bypass/internal/types"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// ReplayTx 是一笔待回放的链上交易
type ReplayTx struct {
	TxIndex        uint64
	Tx             *runtime.Transaction
	ChainSucceeded bool     // 链上执行结果（Meta.Err == nil）
	ChainLogs      []string // 链上日志，用于比对
}

// accountKey 是带权限标记的账户
type accountKey struct {
	pubkey   types.Pubkey
	signer   bool
	writable bool
}

// buildAccountKeys 构造完整账户列表并推导每个账户的 signer / writable 标记。
// 账户顺序：message.accountKeys，然后是 Address Lookup Table 的 writable、readonly 部分。
//
// message.accountKeys 内部按 header 划分为四段：
//
//	[0, S-RS)        signer + writable
//	[S-RS, S)        signer + readonly
//	[S, N-RU)        writable
//	[N-RU, N)        readonly
func buildAccountKeys(
	header *pb.MessageHeader,
	accountKeys, loadedWritable, loadedReadonly [][]byte,
) ([]accountKey, error) {
	n := len(accountKeys)
	numSigners := int(header.NumRequiredSignatures)
	readonlySigned := int(header.NumReadonlySignedAccounts)
	readonlyUnsigned := int(header.NumReadonlyUnsignedAccounts)
	if numSigners == 0 || numSigners > n || readonlySigned > numSigners || readonlyUnsigned > n-numSigners {
		return nil, fmt.Errorf("invalid message header: signers=%d readonlySigned=%d readonlyUnsigned=%d keys=%d",
			numSigners, readonlySigned, readonlyUnsigned, n)
	}

	total := n + len(loadedWritable) + len(loadedReadonly)
	keys := make([]accountKey, total)

	i := 0
	for _, b := range accountKeys {
		pk, err := types.PubkeyFromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("invalid pubkey in accountKeys at index %d: %w", i, err)
		}
		signer := i < numSigners
		var writable bool
		if signer {
			writable = i < numSigners-readonlySigned
		} else {
			writable = i < n-readonlyUnsigned
		}
		keys[i] = accountKey{pubkey: pk, signer: signer, writable: writable}
		i++
	}

	for _, b := range loadedWritable {
		pk, err := types.PubkeyFromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("invalid pubkey in loadedWritable at index %d: %w", i, err)
		}
		keys[i] = accountKey{pubkey: pk, writable: true}
		i++
	}

	for _, b := range loadedReadonly {
		pk, err := types.PubkeyFromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("invalid pubkey in loadedReadonly at index %d: %w", i, err)
		}
		keys[i] = accountKey{pubkey: pk}
		i++
	}
	return keys, nil
}

// convertInstruction 将编译后的主指令按账户索引还原为 RawInstruction
func convertInstruction(inst *pb.CompiledInstruction, keys []accountKey) (program.RawInstruction, error) {
	if int(inst.ProgramIdIndex) >= len(keys) {
		return program.RawInstruction{}, fmt.Errorf("program id index %d out of range", inst.ProgramIdIndex)
	}
	metas := make([]program.AccountMeta, 0, len(inst.Accounts))
	for _, idx := range inst.Accounts {
		if int(idx) >= len(keys) {
			return program.RawInstruction{}, fmt.Errorf("account index %d out of range", idx)
		}
		k := keys[idx]
		metas = append(metas, program.AccountMeta{Pubkey: k.pubkey, IsSigner: k.signer, IsWritable: k.writable})
	}
	return program.RawInstruction{
		ProgramID: keys[inst.ProgramIdIndex].pubkey,
		Accounts:  metas,
		Data:      inst.Data,
	}, nil
}

// TranslateGrpcTx 解析 gRPC 推送的交易，只保留发往 programID 的主指令。
// 交易中没有相关指令时返回 (nil, nil)。
// 通过 CPI 调用本程序的 inner 指令不回放。
func TranslateGrpcTx(slot uint64, tx *pb.SubscribeUpdateTransactionInfo, programID types.Pubkey) (_ *ReplayTx, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("TranslateGrpcTx panic: %v", r)
		}
	}()

	if err := ValidateGrpcTx(tx); err != nil {
		return nil, err
	}

	msg := tx.Transaction.Message
	keys, err := buildAccountKeys(msg.Header, msg.AccountKeys, tx.Meta.LoadedWritableAddresses, tx.Meta.LoadedReadonlyAddresses)
	if err != nil {
		return nil, fmt.Errorf("buildAccountKeys error: %w", err)
	}

	var instructions []program.RawInstruction
	for i, inst := range msg.Instructions {
		raw, err := convertInstruction(inst, keys)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		if raw.ProgramID == programID {
			instructions = append(instructions, raw)
		}
	}
	if len(instructions) == 0 {
		return nil, nil
	}

	sig, err := types.SignatureFromBytes(tx.Transaction.Signatures[0])
	if err != nil {
		return nil, err
	}
	signers := make([]types.Pubkey, 0, msg.Header.NumRequiredSignatures)
	for _, k := range keys {
		if k.signer {
			signers = append(signers, k.pubkey)
		}
	}

	return &ReplayTx{
		TxIndex: tx.Index,
		Tx: &runtime.Transaction{
			Signature:    sig,
			Signers:      signers,
			Instructions: instructions,
			Slot:         slot,
		},
		ChainSucceeded: tx.Meta.Err == nil,
		ChainLogs:      tx.Meta.LogMessages,
	}, nil
}

package client

import (
	"fmt"

	"bubblemap-bypass/internal/program"
	"bubblemap-bypass/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	sdktypes "github.com/blocto/solana-go-sdk/types"
)

// NewInitializeInstruction 构造 initialize 指令（无账户、无参数）
func NewInitializeInstruction(programID types.Pubkey) (program.RawInstruction, error) {
	return newRawInstruction(programID, &program.Initialize{})
}

// NewBypassInstruction 构造 bypass 指令（无账户、无参数）
func NewBypassInstruction(programID types.Pubkey) (program.RawInstruction, error) {
	return newRawInstruction(programID, &program.Bypass{})
}

// NewInstructionByName 按 IDL 中的指令名构造
func NewInstructionByName(programID types.Pubkey, name string) (program.RawInstruction, error) {
	switch name {
	case "initialize":
		return NewInitializeInstruction(programID)
	case "bypass":
		return NewBypassInstruction(programID)
	default:
		return program.RawInstruction{}, fmt.Errorf("unknown instruction name %q", name)
	}
}

func newRawInstruction(programID types.Pubkey, ix program.Instruction) (program.RawInstruction, error) {
	data, err := program.EncodeInstruction(ix)
	if err != nil {
		return program.RawInstruction{}, err
	}
	return program.RawInstruction{
		ProgramID: programID,
		Accounts:  ix.AccountMetas(),
		Data:      data,
	}, nil
}

// ToSDKInstruction 转为 solana-go-sdk 的指令结构，用于组装交易
func ToSDKInstruction(raw program.RawInstruction) sdktypes.Instruction {
	metas := make([]sdktypes.AccountMeta, 0, len(raw.Accounts))
	for _, m := range raw.Accounts {
		metas = append(metas, sdktypes.AccountMeta{
			PubKey:     common.PublicKey(m.Pubkey),
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
		})
	}
	return sdktypes.Instruction{
		ProgramID: common.PublicKey(raw.ProgramID),
		Accounts:  metas,
		Data:      raw.Data,
	}
}

// FromSDKInstruction 是 ToSDKInstruction 的逆过程，用于本地运行时预执行
func FromSDKInstruction(ix sdktypes.Instruction) program.RawInstruction {
	metas := make([]program.AccountMeta, 0, len(ix.Accounts))
	for _, m := range ix.Accounts {
		metas = append(metas, program.AccountMeta{
			Pubkey:     types.Pubkey(m.PubKey),
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
		})
	}
	return program.RawInstruction{
		ProgramID: types.Pubkey(ix.ProgramID),
		Accounts:  metas,
		Data:      ix.Data,
	}
}

package program

import (
	"encoding/binary"
	"fmt"

	"bubblemap-bypass/internal/consts"
	"bubblemap-bypass/internal/types"

	"github.com/near/borsh-go"
)

// RawInstruction 是宿主运行时交给程序的原始指令（解码前的线上格式）
//
// Data 布局：discriminator(8 字节) || borsh(args)
type RawInstruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Instruction 是程序支持的指令集合，只有本包内的类型可以实现（封闭的 tagged union）。
// 新增指令需要同时修改 DecodeInstruction 与 Program.Dispatch。
type Instruction interface {
	Name() string
	Discriminator() uint64
	Shape() ContextShape
	AccountMetas() []AccountMeta

	sealed()
}

// InitializeArgs 与 BypassArgs 当前均无参数
type InitializeArgs struct{}

type BypassArgs struct{}

type Initialize struct {
	Accounts []AccountMeta
	Args     InitializeArgs
}

func (*Initialize) Name() string                   { return "Initialize" }
func (*Initialize) Discriminator() uint64          { return consts.InitializeDiscriminator }
func (*Initialize) Shape() ContextShape            { return InitializeAccounts }
func (ix *Initialize) AccountMetas() []AccountMeta { return ix.Accounts }
func (*Initialize) sealed()                        {}

type Bypass struct {
	Accounts []AccountMeta
	Args     BypassArgs
}

func (*Bypass) Name() string                   { return "Bypass" }
func (*Bypass) Discriminator() uint64          { return consts.BypassDiscriminator }
func (*Bypass) Shape() ContextShape            { return BypassAccounts }
func (ix *Bypass) AccountMetas() []AccountMeta { return ix.Accounts }
func (*Bypass) sealed()                        {}

// DecodeInstruction 根据 data 前 8 字节选择指令变体并 borsh 解码参数。
// 参数之后多余的字节被忽略。
func DecodeInstruction(data []byte, accounts []AccountMeta) (Instruction, error) {
	// 指令 data 至少应包含 8 字节方法 ID
	if len(data) < consts.DiscriminatorSize {
		return nil, newError(CodeInstructionMissing, "instruction data too short: %d bytes", len(data))
	}

	args := data[consts.DiscriminatorSize:]
	switch d := binary.BigEndian.Uint64(data[:consts.DiscriminatorSize]); d {
	case consts.InitializeDiscriminator:
		ix := &Initialize{Accounts: accounts}
		if err := decodeArgs(&ix.Args, args); err != nil {
			return nil, err
		}
		return ix, nil
	case consts.BypassDiscriminator:
		ix := &Bypass{Accounts: accounts}
		if err := decodeArgs(&ix.Args, args); err != nil {
			return nil, err
		}
		return ix, nil
	default:
		return nil, newError(CodeUnknownInstruction, "discriminator 0x%016x", d)
	}
}

func decodeArgs(dst any, args []byte) (err error) {
	// borsh 对畸形输入可能 panic
	defer func() {
		if r := recover(); r != nil {
			err = newError(CodeInstructionDidNotDeserialize, "borsh panic: %v", r)
		}
	}()
	if err := borsh.Deserialize(dst, args); err != nil {
		return newError(CodeInstructionDidNotDeserialize, "%v", err)
	}
	return nil
}

// EncodeInstruction 生成某个指令变体的线上 data（客户端构造交易时使用）
func EncodeInstruction(ix Instruction) ([]byte, error) {
	var args any
	switch v := ix.(type) {
	case *Initialize:
		args = v.Args
	case *Bypass:
		args = v.Args
	default:
		return nil, fmt.Errorf("unsupported instruction %T", ix)
	}

	body, err := borsh.Serialize(args)
	if err != nil {
		return nil, fmt.Errorf("borsh serialize %s args: %w", ix.Name(), err)
	}
	data := make([]byte, consts.DiscriminatorSize, consts.DiscriminatorSize+len(body))
	binary.BigEndian.PutUint64(data, ix.Discriminator())
	return append(data, body...), nil
}

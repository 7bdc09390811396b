package runtime

import (
	"context"
	"errors"
	"testing"

	"bubblemap-bypass/internal/consts"
	"bubblemap-bypass/internal/program"
	"bubblemap-bypass/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, ix program.Instruction, accounts ...program.AccountMeta) program.RawInstruction {
	t.Helper()
	data, err := program.EncodeInstruction(ix)
	require.NoError(t, err)
	return program.RawInstruction{ProgramID: consts.BubblemapBypassProgram, Accounts: accounts, Data: data}
}

func sig(b byte) types.Signature {
	var s types.Signature
	s[0] = b
	return s
}

func newRuntime() *Runtime {
	rt := New(WithSignatureStore(NewMemoryStore()))
	rt.Register(program.Default())
	return rt
}

func TestExecute_Success(t *testing.T) {
	rt := newRuntime()
	payer := types.Pubkey{7}

	receipt, err := rt.Execute(context.Background(), &Transaction{
		Signature:    sig(1),
		Signers:      []types.Pubkey{payer},
		Instructions: []program.RawInstruction{encode(t, &program.Initialize{}), encode(t, &program.Bypass{})},
	})
	require.NoError(t, err)
	require.True(t, receipt.Succeeded(), "err: %v", receipt.Err)
	assert.Equal(t, -1, receipt.InstructionIndex)
	assert.Equal(t, uint64(1), receipt.Slot)

	id := consts.BubblemapBypassProgramStr
	assert.Equal(t, []string{
		"Program " + id + " invoke [1]",
		"Program log: Instruction: Initialize",
		"Program log: Bubblemap Bypass Program Initialized",
		"Program " + id + " success",
		"Program " + id + " invoke [1]",
		"Program log: Instruction: Bypass",
		"Program log: Bypass executed",
		"Program " + id + " success",
	}, receipt.LogMessages)
}

func TestExecute_InvalidContextFailsWholeTx(t *testing.T) {
	rt := newRuntime()
	extra := program.AccountMeta{Pubkey: types.Pubkey{3}}

	receipt, err := rt.Execute(context.Background(), &Transaction{
		Signature: sig(2),
		Instructions: []program.RawInstruction{
			encode(t, &program.Initialize{}),
			encode(t, &program.Bypass{}, extra),
			encode(t, &program.Initialize{}),
		},
	})
	require.NoError(t, err)
	assert.False(t, receipt.Succeeded())
	assert.Equal(t, 1, receipt.InstructionIndex)
	assert.ErrorIs(t, receipt.Err, program.ErrInvalidContext)
	assert.Contains(t, receipt.LogMessages[len(receipt.LogMessages)-1], "failed: custom program error: 0xbbd")

	// 失败之后的指令不会执行
	count := 0
	for _, line := range receipt.LogMessages {
		if line == "Program log: Bubblemap Bypass Program Initialized" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExecute_StructuralRejections(t *testing.T) {
	rt := newRuntime()
	signer := program.AccountMeta{Pubkey: types.Pubkey{4}, IsSigner: true}

	cases := []struct {
		name string
		tx   *Transaction
		want error
	}{
		{"empty", &Transaction{Signature: sig(10)}, ErrEmptyTransaction},
		{"missing signature", &Transaction{
			Signature:    sig(11),
			Instructions: []program.RawInstruction{encode(t, &program.Bypass{}, signer)},
		}, ErrMissingSignature},
		{"unknown program", &Transaction{
			Signature:    sig(12),
			Instructions: []program.RawInstruction{{ProgramID: consts.SystemProgram}},
		}, ErrProgramNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			receipt, err := rt.Execute(context.Background(), tc.tx)
			require.NoError(t, err)
			assert.False(t, receipt.Succeeded())
			assert.ErrorIs(t, receipt.Err, tc.want)
		})
	}
}

// 签名者齐全时，宿主检查通过，但程序仍然因账户数量不符拒绝
func TestExecute_SignedExtraAccountStillInvalidContext(t *testing.T) {
	rt := newRuntime()
	signer := program.AccountMeta{Pubkey: types.Pubkey{4}, IsSigner: true}

	receipt, err := rt.Execute(context.Background(), &Transaction{
		Signature:    sig(13),
		Signers:      []types.Pubkey{signer.Pubkey},
		Instructions: []program.RawInstruction{encode(t, &program.Bypass{}, signer)},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, receipt.Err, program.ErrInvalidContext)
	assert.Equal(t, 0, receipt.InstructionIndex)
}

func TestExecute_DuplicateSignature(t *testing.T) {
	rt := newRuntime()
	tx := &Transaction{Signature: sig(20), Instructions: []program.RawInstruction{encode(t, &program.Initialize{})}}

	first, err := rt.Execute(context.Background(), tx)
	require.NoError(t, err)
	assert.True(t, first.Succeeded())

	second, err := rt.Execute(context.Background(), tx)
	require.NoError(t, err)
	assert.ErrorIs(t, second.Err, ErrAlreadyProcessed)

	// 新签名的同一指令依然成功（initialize 幂等）
	tx2 := &Transaction{Signature: sig(21), Instructions: tx.Instructions}
	third, err := rt.Execute(context.Background(), tx2)
	require.NoError(t, err)
	assert.True(t, third.Succeeded())
}

type failingStore struct{}

func (failingStore) MarkProcessed(context.Context, types.Signature) (bool, error) {
	return false, errors.New("store down")
}

func TestExecute_StoreFailure(t *testing.T) {
	rt := New(WithSignatureStore(failingStore{}))
	rt.Register(program.Default())

	_, err := rt.Execute(context.Background(), &Transaction{
		Signature:    sig(30),
		Instructions: []program.RawInstruction{encode(t, &program.Bypass{})},
	})
	assert.Error(t, err)
}

func TestExecute_SlotAssignment(t *testing.T) {
	rt := New()
	rt.Register(program.Default())
	ix := []program.RawInstruction{encode(t, &program.Bypass{})}

	r1, _ := rt.Execute(context.Background(), &Transaction{Signature: sig(1), Instructions: ix, Slot: 100})
	r2, _ := rt.Execute(context.Background(), &Transaction{Signature: sig(2), Instructions: ix})
	assert.Equal(t, uint64(100), r1.Slot)
	assert.Equal(t, uint64(101), r2.Slot)

	// 未设置判重存储时，同一签名可重复回放
	r3, _ := rt.Execute(context.Background(), &Transaction{Signature: sig(1), Instructions: ix, Slot: 100})
	assert.True(t, r3.Succeeded())
}

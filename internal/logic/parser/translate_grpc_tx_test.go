package parser

import (
	"testing"

	"bubblemap-bypass/internal/consts"
	"bubblemap-bypass/internal/program"
	"bubblemap-bypass/internal/types"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) []byte {
	k := make([]byte, types.PubkeySize)
	k[0] = b
	return k
}

func pubkey(b byte) types.Pubkey {
	var pk types.Pubkey
	pk[0] = b
	return pk
}

func initializeData(t *testing.T) []byte {
	t.Helper()
	data, err := program.EncodeInstruction(&program.Initialize{})
	require.NoError(t, err)
	return data
}

// 账户布局：
//
//	0 payer      signer + writable
//	1 cosigner   signer + readonly
//	2 writable
//	3 program    readonly
//	4 other      readonly
//	5 ALT writable
//	6 ALT readonly
func buildTx(t *testing.T) *pb.SubscribeUpdateTransactionInfo {
	sig := make([]byte, 64)
	sig[0] = 9
	return &pb.SubscribeUpdateTransactionInfo{
		Signature: sig,
		Index:     7,
		Transaction: &pb.Transaction{
			Signatures: [][]byte{sig, make([]byte, 64)},
			Message: &pb.Message{
				Header: &pb.MessageHeader{
					NumRequiredSignatures:       2,
					NumReadonlySignedAccounts:   1,
					NumReadonlyUnsignedAccounts: 2,
				},
				AccountKeys: [][]byte{key(1), key(2), key(3), consts.BubblemapBypassProgram[:], key(4)},
				Instructions: []*pb.CompiledInstruction{
					{ProgramIdIndex: 4, Accounts: []byte{0}, Data: []byte{2, 0, 0, 0}},
					{ProgramIdIndex: 3, Accounts: []byte{0, 1, 2, 5, 6}, Data: initializeData(t)},
					{ProgramIdIndex: 3, Data: initializeData(t)},
				},
			},
		},
		Meta: &pb.TransactionStatusMeta{
			LogMessages:             []string{"Program log: Instruction: Initialize"},
			LoadedWritableAddresses: [][]byte{key(5)},
			LoadedReadonlyAddresses: [][]byte{key(6)},
		},
	}
}

func TestTranslateGrpcTx_Flags(t *testing.T) {
	rtx, err := TranslateGrpcTx(100, buildTx(t), consts.BubblemapBypassProgram)
	require.NoError(t, err)
	require.NotNil(t, rtx)

	assert.Equal(t, uint64(7), rtx.TxIndex)
	assert.True(t, rtx.ChainSucceeded)
	assert.Equal(t, []string{"Program log: Instruction: Initialize"}, rtx.ChainLogs)

	tx := rtx.Tx
	assert.Equal(t, uint64(100), tx.Slot)
	assert.Equal(t, byte(9), tx.Signature[0])
	assert.Equal(t, []types.Pubkey{pubkey(1), pubkey(2)}, tx.Signers)

	// 只保留发往本程序的两条指令
	require.Len(t, tx.Instructions, 2)
	assert.Equal(t, []program.AccountMeta{
		{Pubkey: pubkey(1), IsSigner: true, IsWritable: true},
		{Pubkey: pubkey(2), IsSigner: true, IsWritable: false},
		{Pubkey: pubkey(3), IsSigner: false, IsWritable: true},
		{Pubkey: pubkey(5), IsSigner: false, IsWritable: true},
		{Pubkey: pubkey(6), IsSigner: false, IsWritable: false},
	}, tx.Instructions[0].Accounts)
	assert.Empty(t, tx.Instructions[1].Accounts)
	assert.Equal(t, consts.BubblemapBypassProgram, tx.Instructions[1].ProgramID)
}

func TestTranslateGrpcTx_ChainFailed(t *testing.T) {
	info := buildTx(t)
	info.Meta.Err = &pb.TransactionError{Err: []byte{1}}

	rtx, err := TranslateGrpcTx(1, info, consts.BubblemapBypassProgram)
	require.NoError(t, err)
	assert.False(t, rtx.ChainSucceeded)
}

func TestTranslateGrpcTx_NoProgramInstruction(t *testing.T) {
	rtx, err := TranslateGrpcTx(1, buildTx(t), pubkey(200))
	assert.NoError(t, err)
	assert.Nil(t, rtx)
}

func TestTranslateGrpcTx_Invalid(t *testing.T) {
	cases := map[string]func(*pb.SubscribeUpdateTransactionInfo){
		"vote":          func(tx *pb.SubscribeUpdateTransactionInfo) { tx.IsVote = true },
		"no meta":       func(tx *pb.SubscribeUpdateTransactionInfo) { tx.Meta = nil },
		"no header":     func(tx *pb.SubscribeUpdateTransactionInfo) { tx.Transaction.Message.Header = nil },
		"short sig":     func(tx *pb.SubscribeUpdateTransactionInfo) { tx.Transaction.Signatures[0] = []byte{1} },
		"no signatures": func(tx *pb.SubscribeUpdateTransactionInfo) { tx.Transaction.Signatures = nil },
		"bad header": func(tx *pb.SubscribeUpdateTransactionInfo) {
			tx.Transaction.Message.Header.NumRequiredSignatures = 10
		},
		"account index out of range": func(tx *pb.SubscribeUpdateTransactionInfo) {
			tx.Transaction.Message.Instructions[1].Accounts = []byte{42}
		},
		"program index out of range": func(tx *pb.SubscribeUpdateTransactionInfo) {
			tx.Transaction.Message.Instructions[0].ProgramIdIndex = 42
		},
		"bad pubkey": func(tx *pb.SubscribeUpdateTransactionInfo) {
			tx.Transaction.Message.AccountKeys[2] = []byte{1, 2, 3}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			info := buildTx(t)
			mutate(info)
			_, err := TranslateGrpcTx(1, info, consts.BubblemapBypassProgram)
			assert.Error(t, err)
		})
	}

	_, err := TranslateGrpcTx(1, nil, consts.BubblemapBypassProgram)
	assert.Error(t, err)
}

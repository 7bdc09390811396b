package client

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"bubblemap-bypass/internal/pkg/logger"
	"bubblemap-bypass/internal/program"
	"bubblemap-bypass/internal/runtime"
	"bubblemap-bypass/internal/types"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
	sdktypes "github.com/blocto/solana-go-sdk/types"
)

// RPC 是 Invoker 依赖的 Solana RPC 子集，*client.Client 满足该接口
type RPC interface {
	GetLatestBlockhash(ctx context.Context) (rpc.GetLatestBlockhashValue, error)
	SendTransaction(ctx context.Context, tx sdktypes.Transaction) (string, error)
	SimulateTransaction(ctx context.Context, tx sdktypes.Transaction) (client.SimulateTransaction, error)
}

// InvokeResult 是一次调用的结果
type InvokeResult struct {
	Signature string   // 交易签名（base58）
	Logs      []string // 模拟或本地执行的日志；真实发送时为空
	Simulated bool
}

// Invoker 负责构造并提交调用本程序的交易，fee payer 同时是唯一签名者
type Invoker struct {
	rpc       RPC
	payer     sdktypes.Account
	programID types.Pubkey
	timeout   time.Duration
}

func NewInvoker(rpcClient RPC, payer sdktypes.Account, programID types.Pubkey, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Invoker{
		rpc:       rpcClient,
		payer:     payer,
		programID: programID,
		timeout:   timeout,
	}
}

// NewRPCInvoker 使用 endpoint 创建基于 solana-go-sdk 的 Invoker
func NewRPCInvoker(endpoint string, payer sdktypes.Account, programID types.Pubkey, timeout time.Duration) *Invoker {
	return NewInvoker(client.NewClient(endpoint), payer, programID, timeout)
}

// Invoke 按指令名调用；simulate 为 true 时只模拟不上链
func (iv *Invoker) Invoke(ctx context.Context, name string, simulate bool) (*InvokeResult, error) {
	raw, err := NewInstructionByName(iv.programID, name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	latest, err := iv.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}

	blockhash, err := types.HashFromBase58(latest.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("invalid latest blockhash %q: %w", latest.Blockhash, err)
	}

	tx, err := iv.BuildTransaction(raw, blockhash)
	if err != nil {
		return nil, err
	}
	sig := signatureOf(tx)

	if simulate {
		res, err := iv.rpc.SimulateTransaction(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("simulate %s: %w", name, err)
		}
		if res.Err != nil {
			return &InvokeResult{Signature: sig, Logs: res.Logs, Simulated: true},
				fmt.Errorf("simulate %s failed: %v", name, res.Err)
		}
		logger.Infof("[client::Invoke] simulated %s ok, logs=%d", name, len(res.Logs))
		return &InvokeResult{Signature: sig, Logs: res.Logs, Simulated: true}, nil
	}

	txSig, err := iv.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", name, err)
	}
	logger.Infof("[client::Invoke] %s transaction signature %s", name, txSig)
	return &InvokeResult{Signature: txSig}, nil
}

// BuildTransaction 组装并签名只包含一条程序指令的交易
func (iv *Invoker) BuildTransaction(raw program.RawInstruction, blockhash types.Hash) (sdktypes.Transaction, error) {
	tx, err := sdktypes.NewTransaction(sdktypes.NewTransactionParam{
		Message: sdktypes.NewMessage(sdktypes.NewMessageParam{
			FeePayer:        iv.payer.PublicKey,
			RecentBlockhash: blockhash.String(),
			Instructions:    []sdktypes.Instruction{ToSDKInstruction(raw)},
		}),
		Signers: []sdktypes.Account{iv.payer},
	})
	if err != nil {
		return sdktypes.Transaction{}, fmt.Errorf("build transaction: %w", err)
	}
	return tx, nil
}

// ExecuteLocal 在本地运行时中执行同一条指令（不需要 RPC），用于离线验证
func (iv *Invoker) ExecuteLocal(ctx context.Context, rt *runtime.Runtime, name string) (*InvokeResult, error) {
	raw, err := NewInstructionByName(iv.programID, name)
	if err != nil {
		return nil, err
	}
	sdkIx := ToSDKInstruction(raw)

	blockhash, err := newLocalBlockhash()
	if err != nil {
		return nil, err
	}
	tx, err := iv.BuildTransaction(raw, blockhash)
	if err != nil {
		return nil, err
	}
	var sig types.Signature
	if len(tx.Signatures) > 0 {
		sig, err = types.SignatureFromBytes(tx.Signatures[0])
		if err != nil {
			return nil, err
		}
	}

	receipt, err := rt.Execute(ctx, &runtime.Transaction{
		Signature:    sig,
		Signers:      []types.Pubkey{types.Pubkey(iv.payer.PublicKey)},
		Instructions: []program.RawInstruction{FromSDKInstruction(sdkIx)},
	})
	if err != nil {
		return nil, err
	}
	result := &InvokeResult{Signature: sig.String(), Logs: receipt.LogMessages, Simulated: true}
	if !receipt.Succeeded() {
		return result, fmt.Errorf("local execute %s: %w", name, receipt.Err)
	}
	return result, nil
}

// newLocalBlockhash 为每次本地执行生成随机 blockhash。
// ed25519 签名是确定性的，同一 payer 对同一消息会得到相同签名，会被签名判重拒绝。
func newLocalBlockhash() (types.Hash, error) {
	var h types.Hash
	if _, err := rand.Read(h[:]); err != nil {
		return h, fmt.Errorf("generate local blockhash: %w", err)
	}
	return h, nil
}

func signatureOf(tx sdktypes.Transaction) string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	sig, err := types.SignatureFromBytes(tx.Signatures[0])
	if err != nil {
		logger.Warnf("[client::signatureOf] invalid signature: %v", err)
		return ""
	}
	return sig.String()
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bubblemap-bypass/internal/client"
	"bubblemap-bypass/internal/config"
	"bubblemap-bypass/internal/logic/progress"
	"bubblemap-bypass/internal/pkg/logger"
	"bubblemap-bypass/internal/runtime"
	"bubblemap-bypass/internal/svc"

	sdktypes "github.com/blocto/solana-go-sdk/types"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/conf"
	"gopkg.in/yaml.v3"
)

var (
	// 全局参数
	cfgFile  string
	simulate bool
	local    bool
)

var rootCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Invoke the bubblemap bypass program",
	Long: `invoke builds a transaction carrying one bubblemap bypass instruction.

By default the transaction is signed by the configured fee payer and sent
over JSON-RPC. --simulate asks the node to simulate it instead, and
--local executes it in the in-process runtime without any RPC.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "f", "etc/invoke.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "simulate the transaction instead of sending it")
	rootCmd.PersistentFlags().BoolVar(&local, "local", false, "execute in the in-process runtime, no RPC")
	rootCmd.MarkFlagsMutuallyExclusive("simulate", "local")

	rootCmd.AddCommand(newInstructionCmd("initialize", "Invoke the initialize instruction"))
	rootCmd.AddCommand(newInstructionCmd("bypass", "Invoke the bypass instruction"))
	rootCmd.AddCommand(idlCmd)
}

func newInstructionCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			return runInstruction(cmd.Context(), c, name)
		},
	}
}

var idlCmd = &cobra.Command{
	Use:   "idl",
	Short: "Print the program interface as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		prog, err := svc.ResolveProgram(c.ProgramID)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(prog.IDL())
	},
}

// loadConfig 读取配置；配置文件不存在时使用默认值
func loadConfig() (config.InvokeConfig, error) {
	var c config.InvokeConfig
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		c.LogConf = config.LogConfig{Format: "console", Level: "info"}
		c.RPCURL = "http://127.0.0.1:8899"
		c.TimeoutSec = 30
	} else if err := conf.Load(cfgFile, &c); err != nil {
		return c, fmt.Errorf("load config %s: %w", cfgFile, err)
	}
	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		return c, err
	}
	return c, nil
}

func runInstruction(ctx context.Context, c config.InvokeConfig, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	prog, err := svc.ResolveProgram(c.ProgramID)
	if err != nil {
		return err
	}

	payer, err := loadPayer(c.PayerKey)
	if err != nil {
		return err
	}
	timeout := time.Duration(c.TimeoutSec) * time.Second

	var result *client.InvokeResult
	if local {
		store, closeStore := signatureStore(c.RedisAddr)
		defer closeStore()
		rt := runtime.New(runtime.WithSignatureStore(store))
		rt.Register(prog)
		iv := client.NewInvoker(nil, payer, prog.ID(), timeout)
		result, err = iv.ExecuteLocal(ctx, rt, name)
	} else {
		if c.PayerKey == "" {
			return fmt.Errorf("payer_key is required unless --local is set")
		}
		iv := client.NewRPCInvoker(c.RPCURL, payer, prog.ID(), timeout)
		result, err = iv.Invoke(ctx, name, simulate)
	}
	if result != nil {
		printResult(result)
	}
	return err
}

// signatureStore 选择本地执行的签名判重存储：配置了 Redis 时跨进程判重，否则只在本进程内
func signatureStore(redisAddr string) (runtime.SignatureStore, func()) {
	if redisAddr == "" {
		return runtime.NewMemoryStore(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	return progress.NewRedisProgressStore(rdb), func() { _ = rdb.Close() }
}

// loadPayer 解析 fee payer；未配置时生成临时账户（仅用于本地执行）
func loadPayer(key string) (sdktypes.Account, error) {
	if key == "" {
		return sdktypes.NewAccount(), nil
	}
	acc, err := sdktypes.AccountFromBase58(key)
	if err != nil {
		return sdktypes.Account{}, fmt.Errorf("invalid payer_key: %w", err)
	}
	return acc, nil
}

func printResult(r *client.InvokeResult) {
	fmt.Printf("signature: %s\n", r.Signature)
	for _, line := range r.Logs {
		fmt.Println(line)
	}
}

package svc

import (
	"fmt"

	"bubblemap-bypass/internal/config"
	"bubblemap-bypass/internal/consts"
	"bubblemap-bypass/internal/logic/progress"
	"bubblemap-bypass/internal/pkg/logger"
	"bubblemap-bypass/internal/pkg/mq"
	"bubblemap-bypass/internal/program"
	"bubblemap-bypass/internal/runtime"
	"bubblemap-bypass/internal/types"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
)

// ReplayServiceContext 包含回放服务资源
type ReplayServiceContext struct {
	Config          config.ReplayConfig
	Program         *program.Program
	Runtime         *runtime.Runtime // 历史回放不做签名判重
	Producer        *kafka.Producer
	Redis           *redis.Client
	ProgressManager *progress.ProgressManager
}

// ResolveProgram 按配置地址创建程序，为空时使用内置地址；原生程序地址不可作为本程序地址
func ResolveProgram(programID string) (*program.Program, error) {
	if programID == "" {
		return program.Default(), nil
	}
	id, err := types.TryPubkeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id %q: %w", programID, err)
	}
	if id == consts.SystemProgram || id == consts.ComputeBudgetProgramId {
		return nil, fmt.Errorf("program id %s is a native program", programID)
	}
	return program.New(id), nil
}

// NewReplayServiceContext 创建一个新的回放服务上下文
func NewReplayServiceContext(c config.ReplayConfig) (*ReplayServiceContext, error) {
	// 1. 程序与本地运行时
	prog, err := ResolveProgram(c.ProgramID)
	if err != nil {
		return nil, err
	}
	rt := runtime.New()
	rt.Register(prog)

	// 2. 初始化 Kafka 生产者
	producer, err := mq.NewKafkaProducer(c.KafkaProducerConf.ToKafkaOption())
	if err != nil {
		logger.Errorf("[svc::NewReplayServiceContext] Kafka producer 初始化失败: %v", err)
		return nil, err
	}

	// 3. 初始化 Redis 客户端（用于 slot 状态缓存）
	rdb := redis.NewClient(&redis.Options{
		Addr: c.RedisAddr, // eg: "127.0.0.1:6379"
	})

	// 4. 判定"近期 block"的时间阈值（默认 60 秒）
	threshold := c.ProgressConf.RecentThresholdSec
	if threshold <= 0 {
		threshold = 60
	}

	ctx := &ReplayServiceContext{
		Config:          c,
		Program:         prog,
		Runtime:         rt,
		Producer:        producer,
		Redis:           rdb,
		ProgressManager: progress.NewProgressManager(progress.NewRedisProgressStore(rdb), threshold),
	}

	logger.Infof("[svc::NewReplayServiceContext] 回放服务上下文初始化完成, program=%s", prog.ID())
	return ctx, nil
}

// Close 关闭服务上下文中的资源
func (ctx *ReplayServiceContext) Close() {
	if ctx.Producer != nil {
		ctx.Producer.Flush(5000)
		ctx.Producer.Close()
	}
	if ctx.Redis != nil {
		_ = ctx.Redis.Close()
	}
}

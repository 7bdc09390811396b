package config

import (
	"bubblemap-bypass/internal/pkg/logger"
	"bubblemap-bypass/internal/pkg/mq"
)

type LogConfig struct {
	Format   string `json:"format,default=console"` // 日志格式，支持 "console" 或 "json"
	LogDir   string `json:"log_dir,optional"`       // 日志目录（可为相对路径或绝对路径），为空只输出 stderr
	Level    string `json:"level,default=info"`     // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress,optional"`      // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置
type KafkaProducerConfig struct {
	Brokers      string `json:"brokers"`                 // Kafka broker 地址，多个用英文逗号分隔
	BatchSize    int    `json:"batch_size,default=32768"` // 批处理大小（单位字节）
	LingerMs     int    `json:"linger_ms,default=5"`      // 批处理最大延迟（毫秒）
	ClientPrefix string `json:"client_prefix,optional"`   // client.id 前缀

	Topics struct {
		Receipt string `json:"receipt"` // 回放 receipt 的 Kafka topic
	} `json:"topics"`

	Partitions struct {
		Receipt int `json:"receipt,default=1"` // receipt topic 的分区数
	} `json:"partitions"`
}

func (c *KafkaProducerConfig) ToKafkaOption() mq.KafkaProducerOption {
	return mq.KafkaProducerOption{
		Brokers:      c.Brokers,
		BatchSize:    c.BatchSize,
		LingerMs:     c.LingerMs,
		ClientPrefix: c.ClientPrefix,
		Topics: []mq.TopicSpec{
			{Topic: c.Topics.Receipt, Partitions: c.Partitions.Receipt},
		},
	}
}

// TimeConfig 表示各种超时配置（单位：毫秒）
type TimeConfig struct {
	SlotDispatchTimeoutMs int `json:"slot_dispatch_timeout_ms,default=3000"` // 每个 slot 的处理最大耗时（回放 + Kafka + Redis）
	EventSendTimeoutMs    int `json:"event_send_timeout_ms,default=1000"`    // 单条消息发送到 Kafka 并等待 ack 的超时时间
}

// GrpcConfig 是 Yellowstone gRPC 客户端连接相关配置
type GrpcConfig struct {
	Endpoint string `json:"endpoint"`        // gRPC 服务端地址
	XToken   string `json:"x_token,optional"` // x-token 认证

	// 应用级逻辑心跳（ping）配置
	StreamPingIntervalSec int `json:"stream_ping_interval_sec,default=10"` // 应用层 ping 心跳间隔（秒）

	// gRPC Keepalive 底层连接检测配置
	KeepalivePingIntervalSec int `json:"keepalive_ping_interval_sec,default=15"` // 底层 keepalive 间隔（秒）
	KeepalivePingTimeoutSec  int `json:"keepalive_ping_timeout_sec,default=5"`   // 底层 keepalive 超时（秒）

	// gRPC 窗口大小调优（用于大数据流推送）
	InitialWindowSize     int `json:"initial_window_size,default=1073741824"`      // 单流窗口大小（字节）
	InitialConnWindowSize int `json:"initial_conn_window_size,default=1073741824"` // 整体连接窗口大小（字节）

	// 消息体大小限制
	MaxCallSendMsgSize int `json:"max_call_send_msg_size,default=67108864"` // 单条消息最大发送字节数
	MaxCallRecvMsgSize int `json:"max_call_recv_msg_size,default=67108864"` // 单条消息最大接收字节数

	// 超时与重连策略
	ReconnectIntervalSec int `json:"reconnect_interval_sec,default=2"`  // 重连最小间隔（秒）
	ConnectTimeoutSec    int `json:"connect_timeout_sec,default=10"`    // 连接建立超时（秒）
	SendTimeoutSec       int `json:"send_timeout_sec,default=5"`        // 发送超时（秒）
	BlockRecvTimeoutSec  int `json:"block_recv_timeout_sec,default=30"` // 超过该时间未收到 block 触发重连（秒）
	MaxLatencyWarnMs     int `json:"max_latency_warn_ms,default=3000"`  // 延迟告警阈值（毫秒）
}

// ReplayConfig 是回放服务的主配置：订阅链上区块，在本地运行时中重放本程序指令并投递 receipt
type ReplayConfig struct {
	LogConf           LogConfig           `json:"logger"`         // 日志配置
	KafkaProducerConf KafkaProducerConfig `json:"kafka_producer"` // Kafka 生产者配置
	TimeConf          TimeConfig          `json:"time_conf"`      // 时间相关配置

	RedisAddr    string `json:"redis_addr"` // Redis 地址
	ProgressConf struct {
		RecentThresholdSec int `json:"recent_threshold_sec,default=60"` // 判定为“近期 block”的时间阈值（秒）
	} `json:"progress"` // 进度管理配置

	ProgramID string     `json:"program_id,optional"` // 回放的程序地址，为空使用内置地址
	Grpc      GrpcConfig `json:"grpc"`
}

// InvokeConfig 是命令行调用工具的配置
type InvokeConfig struct {
	LogConf    LogConfig `json:"logger"`
	RPCURL     string    `json:"rpc_url,default=http://127.0.0.1:8899"` // Solana JSON-RPC 地址
	PayerKey   string    `json:"payer_key,optional"`                    // fee payer 私钥（base58），为空时只能本地执行
	ProgramID  string    `json:"program_id,optional"`                   // 程序地址，为空使用内置地址
	TimeoutSec int       `json:"timeout_sec,default=30"`                // RPC 调用超时（秒）
	RedisAddr  string    `json:"redis_addr,optional"`                   // --local 时的签名判重存储，为空使用内存
}

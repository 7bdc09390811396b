package mq

import (
	"context"
	"fmt"
	"time"

	"bubblemap-bypass/internal/pkg/logger"
	"bubblemap-bypass/internal/utils"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	defaultBatchSize    = 32 * 1024
	defaultLingerMs     = 5
	defaultClientPrefix = "bubblemap-bypass"
	metadataTimeoutMs   = 10000
)

// TopicSpec 描述需要确保存在的 topic
type TopicSpec struct {
	Topic      string // topic 名称
	Partitions int    // 分区数
}

type KafkaProducerOption struct {
	Brokers      string // Kafka broker 地址，多个用英文逗号分隔（如 "localhost:9092,localhost:9093"）
	BatchSize    int    // 批处理大小（单位字节），如 32768 = 32KB
	LingerMs     int    // 批处理最大延迟（毫秒），建议 5~20ms 之间
	ClientPrefix string // client.id 前缀，实际值为 <prefix>-<本机IP>

	Topics []TopicSpec
}

// NewKafkaProducer 确保 topic 存在后创建幂等 Kafka 生产者
func NewKafkaProducer(opt KafkaProducerOption) (*kafka.Producer, error) {
	if err := ensureTopics(opt.Brokers, opt.Topics); err != nil {
		return nil, err
	}

	batchSize := opt.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	lingerMs := opt.LingerMs
	if lingerMs < 0 {
		lingerMs = defaultLingerMs
	}
	prefix := opt.ClientPrefix
	if prefix == "" {
		prefix = defaultClientPrefix
	}
	localIP, _ := utils.GetLocalIP()
	if localIP == "" {
		localIP = "unknown"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": opt.Brokers,
		"client.id":         fmt.Sprintf("%s-%s", prefix, localIP),

		// 可靠性保障：receipt 不允许重复或丢失
		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5, // 幂等场景下最大值为 5

		// 超时与重试
		"delivery.timeout.ms": 30000,
		"request.timeout.ms":  30000,
		"retries":             5,
		"retry.backoff.ms":    100,

		// 性能
		"batch.size":       batchSize,
		"linger.ms":        lingerMs,
		"compression.type": "none",

		"message.max.bytes": 2 * 1024 * 1024, // 2MB
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return producer, nil
}

// ensureTopics 创建缺失的 topic；broker 多于 1 个时副本数取 2
func ensureTopics(brokers string, topics []TopicSpec) error {
	if len(topics) == 0 {
		return nil
	}

	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	meta, err := adminClient.GetMetadata(nil, true, metadataTimeoutMs)
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}

	replicationFactor := 1
	if len(meta.Brokers) > 1 {
		replicationFactor = 2
	}
	logger.Infof("[mq] Kafka broker count = %d, using replication factor = %d", len(meta.Brokers), replicationFactor)

	var missing []kafka.TopicSpecification
	for _, t := range topics {
		if _, ok := meta.Topics[t.Topic]; ok {
			continue
		}
		partitions := t.Partitions
		if partitions <= 0 {
			partitions = 1
		}
		missing = append(missing, kafka.TopicSpecification{
			Topic:             t.Topic,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}
	if len(missing) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	results, err := adminClient.CreateTopics(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %w", result.Topic, result.Error)
		}
		logger.Infof("[mq] topic %s created", result.Topic)
	}
	return nil
}

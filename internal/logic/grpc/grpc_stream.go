package grpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"bubblemap-bypass/internal/config"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/logx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// GrpcStreamManager 订阅包含本程序账户的区块，推送到 blockChan，断线自动重连
type GrpcStreamManager struct {
	mu                sync.Mutex                    // 互斥锁，保护并发安全
	conn              *grpc.ClientConn              // gRPC 连接对象
	client            pb.GeyserClient               // gRPC 客户端
	stream            pb.Geyser_SubscribeClient     // gRPC 订阅流
	stopped           bool                          // 标记是否已经停止
	reconnectAttempts int                           // 已重连次数
	reconnectInterval time.Duration                 // 重连基础间隔
	xToken            string                        // 认证用的 x-token
	accountInclude    []string                      // 区块过滤：只要包含这些账户的交易
	pingInterval      time.Duration                 // Stream心跳包发送间隔
	blockTimeout      time.Duration                 // 超过该时间未收到 block 触发重连
	sendTimeout       time.Duration                 // gRPC发送超时
	latencyWarn       time.Duration                 // 区块延迟告警阈值
	blockChan         chan *pb.SubscribeUpdateBlock // 区块数据通道
	connCtx           context.Context               // 当前连接的 context
	connCancel        context.CancelFunc            // 当前连接的 cancel 函数
	logx.Logger
}

func NewGrpcStreamManager(grpcConf config.GrpcConfig, accountInclude []string, blockChan chan *pb.SubscribeUpdateBlock) (*GrpcStreamManager, error) {
	configTls := &tls.Config{
		InsecureSkipVerify: true,
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(grpcConf.ConnectTimeoutSec)*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		grpcConf.Endpoint,
		grpc.WithTransportCredentials(credentials.NewTLS(configTls)),
		grpc.WithInitialWindowSize(int32(grpcConf.InitialWindowSize)),
		grpc.WithInitialConnWindowSize(int32(grpcConf.InitialConnWindowSize)),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(grpcConf.MaxCallSendMsgSize),
			grpc.MaxCallRecvMsgSize(grpcConf.MaxCallRecvMsgSize),
		),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Duration(grpcConf.KeepalivePingIntervalSec) * time.Second,
			Timeout:             time.Duration(grpcConf.KeepalivePingTimeoutSec) * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s: %w", grpcConf.Endpoint, err)
	}

	return newStreamManager(conn, pb.NewGeyserClient(conn), grpcConf, accountInclude, blockChan), nil
}

func newStreamManager(
	conn *grpc.ClientConn,
	client pb.GeyserClient,
	grpcConf config.GrpcConfig,
	accountInclude []string,
	blockChan chan *pb.SubscribeUpdateBlock,
) *GrpcStreamManager {
	return &GrpcStreamManager{
		conn:              conn,
		client:            client,
		reconnectInterval: time.Duration(grpcConf.ReconnectIntervalSec) * time.Second,
		xToken:            grpcConf.XToken,
		accountInclude:    accountInclude,
		pingInterval:      time.Duration(grpcConf.StreamPingIntervalSec) * time.Second,
		blockTimeout:      time.Duration(grpcConf.BlockRecvTimeoutSec) * time.Second,
		sendTimeout:       time.Duration(grpcConf.SendTimeoutSec) * time.Second,
		latencyWarn:       time.Duration(grpcConf.MaxLatencyWarnMs) * time.Millisecond,
		blockChan:         blockChan,
		Logger:            logx.WithContext(context.Background()).WithFields(logx.Field("service", "grpc_stream")),
	}
}

func (m *GrpcStreamManager) Start() {
	m.mustConnect()
}

func (m *GrpcStreamManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
	}
}

func (m *GrpcStreamManager) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// 内部循环直到连接成功或被停止
func (m *GrpcStreamManager) mustConnect() {
	for !m.isStopped() {
		if m.reconnectAttempts > 0 {
			if m.reconnectAttempts > 3 {
				time.Sleep(m.reconnectInterval * 2)
			} else {
				time.Sleep(m.reconnectInterval)
			}
		}
		m.Infof("Connecting... Attempt %d", m.reconnectAttempts+1)
		m.reconnectAttempts++
		err := m.connect()
		if err == nil {
			return
		}
		m.Errorf("Connect failed: %v, will retry...", err)
	}
}

func buildSubscribeRequest(accountInclude []string) *pb.SubscribeRequest {
	blocks := make(map[string]*pb.SubscribeRequestFilterBlocks)
	blocks["blocks"] = &pb.SubscribeRequestFilterBlocks{
		AccountInclude:      accountInclude,
		IncludeTransactions: boolPtr(true),
		IncludeAccounts:     boolPtr(false),
		IncludeEntries:      boolPtr(false),
	}
	commitment := pb.CommitmentLevel_CONFIRMED
	return &pb.SubscribeRequest{
		Blocks:     blocks,
		Commitment: &commitment,
	}
}

// connect 只尝试一次连接
func (m *GrpcStreamManager) connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return errors.New("manager is stopped")
	}

	// 先关闭旧的 context，优雅退出旧 goroutine
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.connCtx, m.connCancel = context.WithCancel(context.Background())

	metaCtx := metadata.NewOutgoingContext(
		m.connCtx,
		metadata.New(map[string]string{"x-token": m.xToken}),
	)
	stream, err := m.client.Subscribe(metaCtx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	req := buildSubscribeRequest(m.accountInclude)
	if err := sendWithTimeout(m.connCtx, stream.Send, req, m.sendTimeout); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}

	m.stream = stream
	m.reconnectAttempts = 0
	m.Infof("Connection established, account include: %v", m.accountInclude)

	go m.pingLoop(m.connCtx, stream)
	go m.blockRecvLoop(m.connCtx, stream)

	return nil
}

func (m *GrpcStreamManager) blockRecvLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	last := time.Now()
	for {
		if ctx.Err() != nil {
			return
		}
		update, err := stream.Recv()
		now := time.Now()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				m.Errorf("Stream closed by server (EOF), will reconnect")
				m.reconnect()
				return
			}
			m.Errorf("Stream error: %v", err)
			if m.reconnectIfBlockTimeout(last) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if u, ok := update.GetUpdateOneof().(*pb.SubscribeUpdate_Block); ok {
			m.checkLatency(u.Block, now)
			select {
			case m.blockChan <- u.Block:
			case <-ctx.Done():
				return
			}
			last = now
		}

		if m.reconnectIfBlockTimeout(last) {
			return
		}
	}
}

// checkLatency 计算收到区块时相对 blockTime 的延迟，超过阈值告警
func (m *GrpcStreamManager) checkLatency(block *pb.SubscribeUpdateBlock, now time.Time) {
	if block.BlockTime == nil {
		return
	}
	latency := now.Sub(time.Unix(block.BlockTime.Timestamp, 0))
	if m.latencyWarn > 0 && latency > m.latencyWarn {
		m.Slowf("block at slot %d latency %v exceeds %v", block.Slot, latency, m.latencyWarn)
		return
	}
	m.Debugf("received block at slot %d, latency to blockTime: %v", block.Slot, latency)
}

// 带超时的 Send
func sendWithTimeout[T any](ctx context.Context, sendFunc func(T) error, req T, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sendFunc(req)
	}()

	select {
	case <-timeoutCtx.Done():
		return timeoutCtx.Err()
	case err := <-done:
		return err
	}
}

// 心跳检测
func (m *GrpcStreamManager) pingLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	if m.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingReq := &pb.SubscribeRequest{
				Ping: &pb.SubscribeRequestPing{Id: 1},
			}
			if err := sendWithTimeout(ctx, stream.Send, pingReq, m.sendTimeout); err != nil {
				// 只记录日志，不触发重连
				m.Errorf("Ping failed: %v", err)
			}
		}
	}
}

func (m *GrpcStreamManager) reconnectIfBlockTimeout(last time.Time) bool {
	if m.blockTimeout > 0 && time.Since(last) > m.blockTimeout {
		m.Errorf("%v未收到block，触发重连", m.blockTimeout)
		m.reconnect()
		return true
	}
	return false
}

func (m *GrpcStreamManager) reconnect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if m.connCancel != nil {
		m.connCancel() // 关闭所有相关 goroutine
		m.connCancel = nil
	}
	m.mu.Unlock()

	go m.mustConnect()
}

func boolPtr(b bool) *bool {
	return &b
}

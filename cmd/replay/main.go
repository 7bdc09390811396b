package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"bubblemap-bypass/internal/config"
	"bubblemap-bypass/internal/consts"
	"bubblemap-bypass/internal/logic/grpc"
	"bubblemap-bypass/internal/pkg/logger"
	"bubblemap-bypass/internal/svc"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/replay.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()

	flag.Parse()

	var c config.ReplayConfig
	conf.MustLoad(*configFile, &c)

	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		logx.Must(err)
	}
	defer logger.Sync()

	serviceContext, err := svc.NewReplayServiceContext(c)
	logx.Must(err)
	defer serviceContext.Close()

	accountInclude := consts.GrpcAccountInclude
	if c.ProgramID != "" {
		accountInclude = []string{c.ProgramID}
	}

	blockChan := make(chan *pb.SubscribeUpdateBlock, 200)

	grpcService, err := grpc.NewGrpcStreamManager(c.Grpc, accountInclude, blockChan)
	logx.Must(err)

	sg := zerosvc.NewServiceGroup()
	sg.Add(grpcService)
	sg.Add(grpc.NewBlockProcessor(serviceContext, blockChan))

	logx.Infof("Starting replay service, program=%s", serviceContext.Program.ID())

	// ServiceGroup.Start 阻塞，放到后台，由信号触发退出
	go sg.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogFile    = "app.log"
	defaultMaxSizeMB  = 200
	defaultMaxBackups = 10
	defaultMaxAgeDays = 7
)

// LogOption 日志初始化参数（由 config.LogConfig 转换而来）
type LogOption struct {
	Format   string // "console" 或 "json"
	LogDir   string // 日志目录，为空时只输出到 stderr
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩滚动后的旧日志
}

var sugar atomic.Pointer[zap.SugaredLogger]

func init() {
	// 未调用 Init 前使用 stderr console 输出，保证测试与工具命令可直接打印日志
	core := zapcore.NewCore(newEncoder("console"), zapcore.Lock(os.Stderr), zapcore.InfoLevel)
	sugar.Store(zap.New(core).Sugar())
}

// Init 按配置初始化全局 logger，可重复调用（后一次覆盖前一次）
func Init(opt LogOption) error {
	level, err := zapcore.ParseLevel(strings.ToLower(opt.Level))
	if err != nil {
		if opt.Level != "" {
			return fmt.Errorf("invalid log level %q: %w", opt.Level, err)
		}
		level = zapcore.InfoLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(opt.Format), zapcore.Lock(os.Stderr), level),
	}

	if opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log dir %s: %w", opt.LogDir, err)
		}
		// 文件日志按大小滚动
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, defaultLogFile),
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   opt.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(newEncoder(opt.Format), zapcore.AddSync(writer), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	old := sugar.Swap(l.Sugar())
	if old != nil {
		_ = old.Sync()
	}
	return nil
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	if format == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// Sync 刷新缓冲日志，进程退出前调用
func Sync() {
	_ = sugar.Load().Sync()
}

func Debugf(format string, args ...any) {
	sugar.Load().Debugf(format, args...)
}

func Infof(format string, args ...any) {
	sugar.Load().Infof(format, args...)
}

func Warnf(format string, args ...any) {
	sugar.Load().Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	sugar.Load().Errorf(format, args...)
}

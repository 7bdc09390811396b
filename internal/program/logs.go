package program

import (
	"fmt"

	"bubblemap-bypass/internal/pkg/logger"
)

const logPrefix = "Program log: "

// Logs 收集一次执行过程中的程序日志（对应链上 tx.Meta.LogMessages）。
// 日志只是观测旁路，不影响返回值；nil 接收者可安全调用。
type Logs struct {
	lines []string
}

// Msg 写入一条程序日志，格式与链上 `Program log: ...` 一致
func (l *Logs) Msg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Debugf("[program] %s", msg)
	l.Append(logPrefix + msg)
}

// Append 写入一条原始日志行（宿主运行时用于 invoke / success 等行）
func (l *Logs) Append(line string) {
	if l == nil {
		return
	}
	l.lines = append(l.lines, line)
}

// Lines 返回当前已收集的日志副本
func (l *Logs) Lines() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Logs) Len() int {
	if l == nil {
		return 0
	}
	return len(l.lines)
}

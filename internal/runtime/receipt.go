package runtime

import "bubblemap-bypass/internal/types"

type Status int

const (
	StatusSuccess Status = 0
	StatusFailed  Status = 1
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failed"
}

// Receipt 是交易执行结果
type Receipt struct {
	Signature        types.Signature
	Slot             uint64
	Status           Status
	InstructionIndex int   // 失败指令的位置，结构性拒绝或成功时为 -1
	Err              error // 拒绝原因
	LogMessages      []string
}

func (r *Receipt) fail(index int, err error) {
	r.Status = StatusFailed
	r.InstructionIndex = index
	r.Err = err
}

func (r *Receipt) Succeeded() bool {
	return r.Status == StatusSuccess
}

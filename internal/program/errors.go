package program

import (
	"errors"
	"fmt"
)

// ErrorCode 是程序返回的错误码，编号沿用 Anchor 框架的区间：
//   - 100~999   指令解析
//   - 3000~3999 账户上下文
//   - 4100      程序地址不匹配
type ErrorCode uint32

const (
	CodeInstructionMissing           ErrorCode = 100
	CodeUnknownInstruction           ErrorCode = 101
	CodeInstructionDidNotDeserialize ErrorCode = 102
	CodeInvalidContext               ErrorCode = 3005
	CodeDeclaredProgramIdMismatch    ErrorCode = 4100
	CodeHandlerPanicked              ErrorCode = 4200
)

func (c ErrorCode) String() string {
	switch c {
	case CodeInstructionMissing:
		return "InstructionMissing"
	case CodeUnknownInstruction:
		return "UnknownInstruction"
	case CodeInstructionDidNotDeserialize:
		return "InstructionDidNotDeserialize"
	case CodeInvalidContext:
		return "InvalidContext"
	case CodeDeclaredProgramIdMismatch:
		return "DeclaredProgramIdMismatch"
	case CodeHandlerPanicked:
		return "HandlerPanicked"
	default:
		return fmt.Sprintf("Code(%d)", uint32(c))
	}
}

// Error 是分发过程中产生的拒绝结果。Rejection 对本次调用是终态，调用方可修正后重新提交。
type Error struct {
	Code   ErrorCode
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s (%d)", e.Code, uint32(e.Code))
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, uint32(e.Code), e.Detail)
}

// Is 按错误码比较；InstructionMissing 视为 UnknownInstruction 的一种
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == CodeUnknownInstruction && e.Code == CodeInstructionMissing
}

// 哨兵错误，配合 errors.Is 使用
var (
	ErrInstructionMissing           = &Error{Code: CodeInstructionMissing}
	ErrUnknownInstruction           = &Error{Code: CodeUnknownInstruction}
	ErrInstructionDidNotDeserialize = &Error{Code: CodeInstructionDidNotDeserialize}
	ErrInvalidContext               = &Error{Code: CodeInvalidContext}
	ErrDeclaredProgramIdMismatch    = &Error{Code: CodeDeclaredProgramIdMismatch}
	ErrHandlerPanicked              = &Error{Code: CodeHandlerPanicked}
)

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf 取出错误码，非程序错误返回 false
func CodeOf(err error) (ErrorCode, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

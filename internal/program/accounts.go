package program

import "bubblemap-bypass/internal/types"

// AccountMeta 是调用方随指令提交的账户引用及其权限标记
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// AccountConstraint 描述 handler 声明的单个账户要求
type AccountConstraint struct {
	Name    string `yaml:"name"`
	Signer  bool   `yaml:"signer"`
	Mutable bool   `yaml:"mutable"`
}

// ContextShape 是 handler 声明的账户上下文形状，分发器在调用 handler 前统一校验，
// handler 本身不做账户校验。
type ContextShape struct {
	Name     string              `yaml:"name"`
	Accounts []AccountConstraint `yaml:"accounts"`
}

// Validate 校验调用方提交的账户列表：
//   - 数量必须与声明完全一致（多一个也拒绝）
//   - 声明为 signer 的位置必须带 signer 标记
//   - 声明为 mutable 的位置必须带 writable 标记
func (s ContextShape) Validate(metas []AccountMeta) error {
	if len(metas) != len(s.Accounts) {
		return newError(CodeInvalidContext, "%s: expected %d accounts, got %d", s.Name, len(s.Accounts), len(metas))
	}
	for i, want := range s.Accounts {
		got := metas[i]
		if want.Signer && !got.IsSigner {
			return newError(CodeInvalidContext, "%s: account %q (index %d, %s) must be signer", s.Name, want.Name, i, got.Pubkey)
		}
		if want.Mutable && !got.IsWritable {
			return newError(CodeInvalidContext, "%s: account %q (index %d, %s) must be mutable", s.Name, want.Name, i, got.Pubkey)
		}
	}
	return nil
}

// InitializeAccounts 与 BypassAccounts 都不需要任何账户
var (
	InitializeAccounts = ContextShape{Name: "Initialize"}
	BypassAccounts     = ContextShape{Name: "Bypass"}
)

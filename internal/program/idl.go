package program

import (
	"encoding/binary"

	"bubblemap-bypass/internal/consts"
)

// IDL 描述程序对外可见的契约：地址、指令 discriminator、账户形状与错误码
type IDL struct {
	Address      string           `yaml:"address"`
	Name         string           `yaml:"name"`
	Version      string           `yaml:"version"`
	Instructions []IDLInstruction `yaml:"instructions"`
	Errors       []IDLError       `yaml:"errors"`
}

type IDLInstruction struct {
	Name          string              `yaml:"name"`
	Discriminator []int               `yaml:"discriminator,flow"`
	Accounts      []AccountConstraint `yaml:"accounts"`
	Args          []string            `yaml:"args"`
}

type IDLError struct {
	Code uint32 `yaml:"code"`
	Name string `yaml:"name"`
}

const (
	idlName    = "bubblemap_bypass"
	idlVersion = "0.1.0"
)

// IDL 生成当前程序的描述
func (p *Program) IDL() IDL {
	instructions := []Instruction{&Initialize{}, &Bypass{}}

	out := IDL{
		Address: p.id.String(),
		Name:    idlName,
		Version: idlVersion,
	}
	for _, ix := range instructions {
		shape := ix.Shape()
		accounts := shape.Accounts
		if accounts == nil {
			accounts = []AccountConstraint{}
		}
		out.Instructions = append(out.Instructions, IDLInstruction{
			Name:          snakeName(ix.Name()),
			Discriminator: discriminatorBytes(ix.Discriminator()),
			Accounts:      accounts,
			Args:          []string{},
		})
	}
	for _, code := range []ErrorCode{
		CodeInstructionMissing,
		CodeUnknownInstruction,
		CodeInstructionDidNotDeserialize,
		CodeInvalidContext,
		CodeDeclaredProgramIdMismatch,
	} {
		out.Errors = append(out.Errors, IDLError{Code: uint32(code), Name: code.String()})
	}
	return out
}

func discriminatorBytes(d uint64) []int {
	var buf [consts.DiscriminatorSize]byte
	binary.BigEndian.PutUint64(buf[:], d)
	out := make([]int, len(buf))
	for i, b := range buf {
		out[i] = int(b)
	}
	return out
}

// snakeName: "Initialize" -> "initialize"，指令名只含单词首字母大写
func snakeName(name string) string {
	out := make([]byte, 0, len(name)+2)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

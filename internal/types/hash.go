package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Hash 表示区块哈希（32 字节）
type Hash [32]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func (h Hash) Equals(other Hash) bool {
	return h == other
}

func HashFromBase58(s string) (Hash, error) {
	var h Hash
	data, err := base58.Decode(s)
	if err != nil {
		return h, err
	}
	if len(data) != len(h) {
		return h, fmt.Errorf("invalid hash length: got %d, want %d", len(data), len(h))
	}
	copy(h[:], data)
	return h, nil
}

package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// SignatureSize 是交易签名的字节长度（ed25519）
const SignatureSize = 64

// Signature 表示交易签名，交易的第一个签名即为交易 ID
type Signature [SignatureSize]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) IsZero() bool {
	return s == Signature{}
}

func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != SignatureSize {
		return Signature{}, fmt.Errorf("invalid signature length: got %d, want %d", len(b), SignatureSize)
	}
	var s Signature
	copy(s[:], b)
	return s, nil
}

func SignatureFromBase58(str string) (Signature, error) {
	data, err := base58.Decode(str)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to decode base58 signature %q: %w", str, err)
	}
	return SignatureFromBytes(data)
}

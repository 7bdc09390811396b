package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubkeyBase58(t *testing.T) {
	const addr = "BubbmapBypass111111111111111111111111111111"

	p, err := TryPubkeyFromBase58(addr)
	require.NoError(t, err)
	assert.Equal(t, addr, p.String())
	assert.False(t, p.IsZero())

	// 系统程序地址为全零
	sys := PubkeyFromBase58("11111111111111111111111111111111")
	assert.True(t, sys.IsZero())
}

func TestPubkeyInvalidInput(t *testing.T) {
	// 'l' 不在 base58 字母表中
	_, err := TryPubkeyFromBase58("BubblmapBypass111111111111111111111111111")
	assert.Error(t, err)

	// 长度不足 32 字节
	_, err = TryPubkeyFromBase58("abc")
	assert.Error(t, err)

	assert.Panics(t, func() { PubkeyFromBase58("0OIl") })
}

func TestPubkeyText(t *testing.T) {
	var p Pubkey
	require.NoError(t, p.UnmarshalText([]byte("BubbmapBypass111111111111111111111111111111")))
	text, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "BubbmapBypass111111111111111111111111111111", string(text))
}

func TestSignatureFromBytes(t *testing.T) {
	raw := make([]byte, SignatureSize)
	raw[0] = 7
	sig, err := SignatureFromBytes(raw)
	require.NoError(t, err)
	assert.False(t, sig.IsZero())

	back, err := SignatureFromBase58(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, back)

	_, err = SignatureFromBytes(raw[:10])
	assert.Error(t, err)
}

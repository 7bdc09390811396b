package svc

import (
	"testing"

	"bubblemap-bypass/internal/consts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProgram(t *testing.T) {
	p, err := ResolveProgram("")
	require.NoError(t, err)
	assert.Equal(t, consts.BubblemapBypassProgram, p.ID())

	other := "4ruaGCyaofHWGxPFXFVjuEJCdfBGZ2wCtEx6LzdzVqtV"
	p, err = ResolveProgram(other)
	require.NoError(t, err)
	assert.Equal(t, other, p.ID().String())

	_, err = ResolveProgram(consts.SystemProgramStr)
	assert.ErrorContains(t, err, "native program")
	_, err = ResolveProgram(consts.ComputeBudgetProgramIdStr)
	assert.ErrorContains(t, err, "native program")

	_, err = ResolveProgram("not-base58-0OIl")
	assert.Error(t, err)
}

package program

import (
	"testing"

	"bubblemap-bypass/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestContextShape_Validate(t *testing.T) {
	shape := ContextShape{
		Name: "Test",
		Accounts: []AccountConstraint{
			{Name: "authority", Signer: true},
			{Name: "state", Mutable: true},
		},
	}
	authority := types.Pubkey{1}
	state := types.Pubkey{2}

	cases := []struct {
		name  string
		metas []AccountMeta
		ok    bool
	}{
		{"exact", []AccountMeta{{authority, true, false}, {state, false, true}}, true},
		{"extra flags allowed", []AccountMeta{{authority, true, true}, {state, true, true}}, true},
		{"missing account", []AccountMeta{{authority, true, false}}, false},
		{"extra account", []AccountMeta{{authority, true, false}, {state, false, true}, {types.Pubkey{3}, false, false}}, false},
		{"missing signer", []AccountMeta{{authority, false, false}, {state, false, true}}, false},
		{"readonly state", []AccountMeta{{authority, true, false}, {state, false, false}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := shape.Validate(tc.metas)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidContext)
		})
	}
}

func TestDeclaredShapesAreEmpty(t *testing.T) {
	assert.NoError(t, InitializeAccounts.Validate(nil))
	assert.NoError(t, BypassAccounts.Validate([]AccountMeta{}))
	assert.Empty(t, InitializeAccounts.Accounts)
	assert.Empty(t, BypassAccounts.Accounts)
}

func TestErrorString(t *testing.T) {
	err := newError(CodeInvalidContext, "Bypass: expected 0 accounts, got 1")
	assert.Equal(t, "InvalidContext (3005): Bypass: expected 0 accounts, got 1", err.Error())
	assert.Equal(t, "UnknownInstruction (101)", ErrUnknownInstruction.Error())
	assert.Equal(t, "Code(7)", ErrorCode(7).String())
}

package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteCodeAlphabet(t *testing.T) {
	assert.Len(t, InviteCodeAlphabet, 32)
	for _, ambiguous := range []string{"0", "O", "1", "I"} {
		assert.NotContains(t, InviteCodeAlphabet, ambiguous)
	}
	// Every symbol must survive case folding unchanged.
	assert.Equal(t, InviteCodeAlphabet, strings.ToUpper(strings.ToLower(InviteCodeAlphabet)))

	seen := map[rune]bool{}
	for _, r := range InviteCodeAlphabet {
		assert.False(t, seen[r], "duplicate symbol %q", r)
		seen[r] = true
	}
}

func TestNewInviteCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewInviteCode()
		require.NoError(t, err)
		require.Len(t, code, InviteCodeLength)
		require.NoError(t, ValidateInviteCode(code))
	}
}

func TestNewInviteCode_Hook(t *testing.T) {
	original := NewInviteCodeHook
	defer func() { NewInviteCodeHook = original }()

	NewInviteCodeHook = func() (string, bool) { return "ABCDEFGH", true }
	code, err := NewInviteCode()
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGH", code)

	NewInviteCodeHook = func() (string, bool) { return "", false }
	code, err = NewInviteCode()
	require.NoError(t, err)
	assert.Len(t, code, InviteCodeLength)
}

func TestNormalizeInviteCode(t *testing.T) {
	assert.Equal(t, "ABCD2345", NormalizeInviteCode("  abcd-2345 "))
	assert.Equal(t, "ABCD2345", NormalizeInviteCode("abcd 2345"))
}

func TestValidateInviteCode(t *testing.T) {
	assert.ErrorIs(t, ValidateInviteCode("ABC"), ErrInviteCodeLength)
	assert.ErrorIs(t, ValidateInviteCode("ABCDEFG0"), ErrInviteCodeSymbol)
	assert.ErrorIs(t, ValidateInviteCode("ABCDEFGI"), ErrInviteCodeSymbol)
	assert.NoError(t, ValidateInviteCode("ABCDEFGH"))
}

package utils

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// InviteCodeHookFunc defines the signature for the NewInviteCode test hook.
// It returns a code and a boolean indicating whether to override the default generation.
type InviteCodeHookFunc func() (code string, override bool)

// NewInviteCodeHook is a package-level variable that tests can set to override NewInviteCode behavior.
var NewInviteCodeHook InviteCodeHookFunc

// InviteCodeAlphabet holds 32 uppercase symbols. 0, O, 1 and I are left out so
// codes survive being read aloud or copied by hand, and every symbol folds to
// itself under upper-casing.
const InviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// InviteCodeLength is the number of symbols in a generated code.
const InviteCodeLength = 8

var (
	ErrInviteCodeLength = errors.New("invite code must be 8 characters")
	ErrInviteCodeSymbol = errors.New("invalid character in invite code")
)

var inviteCodeMax = big.NewInt(int64(len(InviteCodeAlphabet)))

// NewInviteCode draws InviteCodeLength symbols uniformly, with replacement, from InviteCodeAlphabet.
func NewInviteCode() (string, error) {
	if NewInviteCodeHook != nil {
		if code, override := NewInviteCodeHook(); override {
			return code, nil
		}
	}

	var sb strings.Builder
	sb.Grow(InviteCodeLength)
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, inviteCodeMax)
		if err != nil {
			return "", err
		}
		sb.WriteByte(InviteCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeInviteCode trims and upper-cases a presented code. Hyphens and
// spaces are removed for leniency.
func NormalizeInviteCode(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.ToUpper(s)
}

// ValidateInviteCode checks that a normalized code could have been generated.
func ValidateInviteCode(code string) error {
	if len(code) != InviteCodeLength {
		return ErrInviteCodeLength
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(InviteCodeAlphabet, code[i]) < 0 {
			return ErrInviteCodeSymbol
		}
	}
	return nil
}

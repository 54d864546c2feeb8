package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"homelet/api/internal/utils"
)

// mockMongoDuplicateKeyError creates an error that IsMongoDuplicateKeyError will recognize.
func mockMongoDuplicateKeyError(key string) error {
	mongoErr := mongo.WriteError{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: test.rental_invites index: code_1 dup key: { code: \"%s\" }", key),
	}
	return mongo.WriteException{WriteErrors: []mongo.WriteError{mongoErr}}
}

func TestWithRetries_SuccessfulFirstAttempt(t *testing.T) {
	var opCalled int
	operation := func() error {
		opCalled++
		return nil
	}

	err := WithRetries(operation, 3, IsMongoDuplicateKeyError)
	assert.NoError(t, err)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_FailureNonDuplicateKey(t *testing.T) {
	var opCalled int
	expectedErr := errors.New("some other error")
	operation := func() error {
		opCalled++
		return expectedErr
	}

	err := WithRetries(operation, 3, IsMongoDuplicateKeyError)
	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_ExhaustRetries(t *testing.T) {
	var opCalled int
	operation := func() error {
		opCalled++
		return mockMongoDuplicateKeyError("AAAAAAAA")
	}

	maxRetries := 3
	err := WithRetries(operation, maxRetries, IsMongoDuplicateKeyError)
	require.Error(t, err)
	assert.True(t, IsMongoDuplicateKeyError(err))
	assert.Equal(t, maxRetries+1, opCalled)
}

func TestWithRetries_ZeroRetries(t *testing.T) {
	var opCalled int
	err := WithRetries(func() error {
		opCalled++
		return ErrDuplicateKey
	}, 0, IsDuplicate)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_CodeCollisionResolves(t *testing.T) {
	originalHook := utils.NewInviteCodeHook
	defer func() { utils.NewInviteCodeHook = originalHook }()

	taken := "ABCDEFGH"
	fresh := "JKLMNPQR"
	codes := []string{taken, taken, fresh}
	hookCallCount := 0
	utils.NewInviteCodeHook = func() (string, bool) {
		if hookCallCount < len(codes) {
			code := codes[hookCallCount]
			hookCallCount++
			return code, true
		}
		return "", false
	}

	inserted := map[string]bool{taken: true}
	var opCalled int
	operation := func() error {
		opCalled++
		code, err := utils.NewInviteCode()
		if err != nil {
			return err
		}
		if inserted[code] {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, code)
		}
		inserted[code] = true
		return nil
	}

	err := WithRetries(operation, 3, IsDuplicate)
	require.NoError(t, err)
	assert.Equal(t, 3, opCalled)
	assert.Equal(t, 3, hookCallCount)
	assert.True(t, inserted[fresh])
	assert.Len(t, inserted, 2)
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, IsDuplicate(ErrDuplicateKey))
	assert.True(t, IsDuplicate(fmt.Errorf("wrapped: %w", ErrDuplicateKey)))
	assert.True(t, IsDuplicate(mockMongoDuplicateKeyError("X")))
	assert.True(t, IsDuplicate(mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Code: 11000}}},
	}))
	assert.False(t, IsDuplicate(errors.New("boom")))
	assert.False(t, IsDuplicate(nil))
}

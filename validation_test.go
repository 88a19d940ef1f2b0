package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireExists(t *testing.T) {
	assert.NoError(t, RequireExists(true, "should exist"))

	err := RequireExists(false, "player does not exist")
	require.Error(t, err)
	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "player does not exist", rejected.Message)
}

func TestRequireNotExists(t *testing.T) {
	assert.NoError(t, RequireNotExists(false, "should not exist"))
	assert.Error(t, RequireNotExists(true, "player already exists"))
}

func TestRequirePositive(t *testing.T) {
	assert.NoError(t, RequirePositive(1, "amount"))
	assert.NoError(t, RequirePositive(int64(100), "value"))

	err := RequirePositive(0, "amount")
	require.Error(t, err)
	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "amount must be positive", rejected.Message)

	assert.Error(t, RequirePositive(-5, "amount"))
}

func TestRequireNonNegative(t *testing.T) {
	assert.NoError(t, RequireNonNegative(0, "balance"))
	assert.NoError(t, RequireNonNegative(100, "balance"))

	err := RequireNonNegative(-1, "balance")
	require.Error(t, err)
	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "balance must be non-negative", rejected.Message)
}

func TestRequireNotEmptyString(t *testing.T) {
	assert.NoError(t, RequireNotEmptyString("hello", "name"))

	err := RequireNotEmptyString("", "name")
	require.Error(t, err)
	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "name must not be empty", rejected.Message)
}

func TestRequireNotEmpty(t *testing.T) {
	assert.NoError(t, RequireNotEmpty([]int{1, 2, 3}, "items"))

	err := RequireNotEmpty([]int{}, "items")
	require.Error(t, err)
	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "items must not be empty", rejected.Message)
}

func TestRequireStatus(t *testing.T) {
	assert.NoError(t, RequireStatus("active", "active", "must be active"))

	err := RequireStatus("pending", "active", "must be active")
	require.Error(t, err)
	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "must be active", rejected.Message)
}

func TestRequireStatusNot(t *testing.T) {
	assert.NoError(t, RequireStatusNot("active", "deleted", "cannot be deleted"))

	err := RequireStatusNot("deleted", "deleted", "cannot be deleted")
	require.Error(t, err)
	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "cannot be deleted", rejected.Message)
}

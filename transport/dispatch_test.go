package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	runtime "github.com/benjaminabbitt/angzarr-runtime"
	"github.com/benjaminabbitt/angzarr-runtime/observability"
)

func TestDispatchInvokesCallAndReturnsItsError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	sentinel := errors.New("boom")

	called := false
	err := Dispatch(logger, DispatchFields{Component: "counter", Kind: "aggregate"}, func() error {
		called = true
		return sentinel
	})

	assert.True(t, called)
	assert.Equal(t, sentinel, err)
}

func TestDispatchSuccessReturnsNil(t *testing.T) {
	logger := zaptest.NewLogger(t)

	err := Dispatch(logger, DispatchFields{Component: "counter", Kind: "aggregate"}, func() error {
		return nil
	})

	require.NoError(t, err)
}

func TestOutcomeOfMapsEachErrorKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, observability.OutcomeSuccess},
		{"rejected", runtime.NewCommandRejectedError("no"), observability.OutcomeRejected},
		{"invalid", runtime.NewInvalidArgumentError("bad"), observability.OutcomeInvalidArg},
		{"unsupported", runtime.NewUnsupportedOperationError("nope"), observability.OutcomeUnsupported},
		{"other", errors.New("mystery"), observability.OutcomeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, outcomeOf(tc.err))
		})
	}
}

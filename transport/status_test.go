package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	runtime "github.com/benjaminabbitt/angzarr-runtime"
)

func TestToStatusPrefixesMessageWithErrorKind(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   codes.Code
		prefix string
	}{
		{"rejected", runtime.NewCommandRejectedError("insufficient funds"), codes.FailedPrecondition, "command_rejected: "},
		{"invalid", runtime.NewInvalidArgumentError("bad type url"), codes.InvalidArgument, "invalid_argument: "},
		{"unsupported", runtime.NewUnsupportedOperationError("no snapshot loader"), codes.Unimplemented, "unsupported_operation: "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, ok := status.FromError(ToStatus(tc.err))
			require.True(t, ok)
			assert.Equal(t, tc.code, st.Code())
			assert.True(t, strings.HasPrefix(st.Message(), tc.prefix), "message %q missing prefix %q", st.Message(), tc.prefix)
		})
	}
}

func TestToStatusNilIsNil(t *testing.T) {
	assert.NoError(t, ToStatus(nil))
}

func TestToStatusUnknownErrorMapsToInternal(t *testing.T) {
	st, ok := status.FromError(ToStatus(assertionError("unexpected")))
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.True(t, strings.HasPrefix(st.Message(), "internal: "))
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

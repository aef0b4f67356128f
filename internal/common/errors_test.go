package common

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("parse: %w", ErrInvalidInput), codes.InvalidArgument},
		{NewAppError("CONFIG_ERROR", "missing model", ErrConfig), codes.InvalidArgument},
		{fmt.Errorf("download: %w", ErrNotFound), codes.NotFound},
		{ErrInsufficientPages, codes.FailedPrecondition},
		{fmt.Errorf("boom"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(ToStatus(tc.err)), tc.err.Error())
	}
	assert.NoError(t, ToStatus(nil))
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))
	err := WrapError(ErrService, "analyze chunk")
	assert.ErrorIs(t, err, ErrService)
	assert.Equal(t, "analyze chunk: document service error", err.Error())
}

package api

import (
	"context"
	"errors"

	"github.com/solatis/itemfilter/internal/core/db"
	"github.com/solatis/itemfilter/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Auth errors are mapped in the auth package interceptor.
// Storage errors map to UNAVAILABLE.
// Validation errors map to INVALID_ARGUMENT.
// Context timeouts map to DEADLINE_EXCEEDED.
var codeTable = []struct {
	err  error
	code codes.Code
}{
	{context.DeadlineExceeded, codes.DeadlineExceeded},
	{context.Canceled, codes.Canceled},
	{types.ErrInvalidArgument, codes.InvalidArgument},
	{types.ErrInvalidGUID, codes.InvalidArgument},
	{types.ErrTooManyAttributes, codes.InvalidArgument},
	{types.ErrAttributeKeyTooLong, codes.InvalidArgument},
	{types.ErrAttributeValueTooLong, codes.InvalidArgument},
	{types.ErrDuplicateRule, codes.InvalidArgument},
	{types.ErrRuleNotFound, codes.FailedPrecondition},
	{types.ErrProbableCycle, codes.FailedPrecondition},
	{types.ErrFilterInUse, codes.FailedPrecondition},
	{types.ErrFilterNotFound, codes.NotFound},
	{types.ErrFilterExists, codes.AlreadyExists},
	{types.ErrStaleFilter, codes.Aborted},
	{db.ErrUnavailable, codes.Unavailable},
}

// Code returns the gRPC code for err. Errors outside the table are Internal.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return codes.Internal
}

// toStatus converts a domain error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(Code(err), err.Error())
}

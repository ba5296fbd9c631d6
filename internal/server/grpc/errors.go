package grpc

import (
	"context"
	"errors"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var codeMap = []struct {
	err  error
	code codes.Code
}{
	{common.ErrIllegalTransition, codes.FailedPrecondition},
	{common.ErrConcurrentModification, codes.Aborted},
	{common.ErrVersionConflict, codes.Aborted},
	{common.ErrInvalidToken, codes.Unauthenticated},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrorUnauthorized, codes.PermissionDenied},
	{common.ErrTokenNotFound, codes.NotFound},
	{common.ErrorNotFound, codes.NotFound},
	{common.ErrTokenAlreadyUsed, codes.FailedPrecondition},
	{common.ErrorAlreadyExists, codes.AlreadyExists},
	{common.ErrorValidation, codes.InvalidArgument},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
	{context.Canceled, codes.Canceled},
}

// codeOf maps a service error to its gRPC code.
func codeOf(err error) codes.Code {
	for _, m := range codeMap {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return codes.Internal
}

// toStatus converts err into a gRPC status error. Internal errors are logged
// and their text is not sent to the client.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codeOf(err)
	if code == codes.Internal {
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

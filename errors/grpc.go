package errors

import (
	goerrors "errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MapToGRPCError converts a domain error into a gRPC status error.
// Errors already carrying a status are returned unchanged.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case goerrors.Is(err, ErrValidation), goerrors.Is(err, ErrInvalidCursor):
		return status.Error(codes.InvalidArgument, err.Error())
	case goerrors.Is(err, ErrIdentity):
		return status.Error(codes.Unauthenticated, err.Error())
	case goerrors.Is(err, ErrMessageNotFound):
		return status.Error(codes.NotFound, err.Error())
	case goerrors.Is(err, ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case goerrors.Is(err, ErrRateLimited):
		return status.Error(codes.ResourceExhausted, err.Error())
	case goerrors.Is(err, ErrUnknownMethod):
		return status.Error(codes.Unimplemented, err.Error())
	case goerrors.Is(err, ErrPersistence):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

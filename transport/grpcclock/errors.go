package grpcclock

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/storacha/w3clock/clock"
	"github.com/storacha/w3clock/merkle"
	"github.com/storacha/w3clock/principal"
	"github.com/storacha/w3clock/storage"
)

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, clock.ErrUnknownMethod):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, principal.ErrInvalidDID), errors.Is(err, merkle.ErrInvalidEvent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, clock.ErrUnauthorizedAdvance):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, storage.ErrIntegrity):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, merkle.ErrEventNotFound), storage.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC turns a status error back into the sentinel the server mapped it
// from, keeping the server's message.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.Unimplemented:
		sentinel = clock.ErrUnknownMethod
	case codes.PermissionDenied:
		sentinel = clock.ErrUnauthorizedAdvance
	case codes.DataLoss:
		sentinel = storage.ErrIntegrity
	case codes.NotFound:
		sentinel = merkle.ErrEventNotFound
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}

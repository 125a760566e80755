package rpc

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// ErrorDomain tags the ErrorInfo detail attached to every non-OK status.
const ErrorDomain = "pai.cube.v1"

// #region error-table
var errorTable = []struct {
	err    error
	code   codes.Code
	reason string
}{
	{seu.ErrNotFound, codes.NotFound, "NOT_FOUND"},
	{seu.ErrMissingMeta, codes.FailedPrecondition, "MISSING_META"},
	{seu.ErrIncomplete, codes.FailedPrecondition, "INCOMPLETE"},
	{seu.ErrInvalidChannel, codes.InvalidArgument, "INVALID_CHANNEL"},
	{seu.ErrInvalidRequest, codes.InvalidArgument, "INVALID_REQUEST"},
	{seu.ErrInputsChanged, codes.Aborted, "INPUTS_CHANGED"},
	{orchestrator.ErrCubeRejected, codes.Internal, "CUBE_REJECTED"},
}
// #endregion error-table

// #region to-status
// toStatus maps a pipeline error to a gRPC status carrying an ErrorInfo
// reason, so clients can recover the sentinel.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	code, reason := codes.Internal, "INTERNAL"
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			code, reason = e.code, e.reason
			break
		}
	}
	st := status.New(code, err.Error())
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: ErrorDomain}); derr == nil {
		st = withInfo
	}
	return st.Err()
}
// #endregion to-status

// #region from-status
// statusError keeps the server message while unwrapping to the sentinel.
type statusError struct {
	sentinel error
	st       *status.Status
}

func (e *statusError) Error() string              { return e.st.Message() }
func (e *statusError) Unwrap() error              { return e.sentinel }
func (e *statusError) GRPCStatus() *status.Status { return e.st }

// fromStatus turns a gRPC error back into a sentinel-wrapping error when the
// status carries a known reason.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		for _, e := range errorTable {
			if e.reason == info.GetReason() {
				return &statusError{sentinel: e.err, st: st}
			}
		}
	}
	return err
}
// #endregion from-status

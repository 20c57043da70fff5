package service

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gitlab.ozon.dev/qwestard/orders/internal/validate"
)

// statusError carries the gRPC status sent to the caller and still unwraps
// to the error that caused it.
type statusError struct {
	st    *status.Status
	cause error
}

func (e *statusError) Error() string {
	return e.st.Err().Error()
}

func (e *statusError) GRPCStatus() *status.Status {
	return e.st
}

func (e *statusError) Unwrap() error {
	return e.cause
}

// invalidArgument sets the InvalidArgument status for verr, with the
// "<field> is <reason>" message and a BadRequest field violation attached.
func invalidArgument(verr *validate.ValidationError) error {
	st := status.New(codes.InvalidArgument, verr.Details())
	detailed, err := st.WithDetails(&errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{{
			Field:       verr.Field,
			Description: verr.Reason,
		}},
	})
	if err == nil {
		st = detailed
	}
	return &statusError{st: st, cause: verr}
}

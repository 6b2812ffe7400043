package errors

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// grpcCodes pairs each Code with its gRPC status code. Lookups in either
// direction go through this table; unlisted gRPC codes come back as Internal.
var grpcCodes = map[Code]codes.Code{
	CodeOK:                 codes.OK,
	CodeCanceled:           codes.Canceled,
	CodeInvalidArgument:    codes.InvalidArgument,
	CodeDeadlineExceeded:   codes.DeadlineExceeded,
	CodeNotFound:           codes.NotFound,
	CodeAlreadyExists:      codes.AlreadyExists,
	CodeFailedPrecondition: codes.FailedPrecondition,
	CodeOutOfRange:         codes.OutOfRange,
	CodeInternal:           codes.Internal,
	CodeUnavailable:        codes.Unavailable,
}

// ToGRPCError turns err into a status error for the admin and health
// surface. Status errors pass through; coded errors keep their message
// without the code prefix.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	grpcCode, ok := grpcCodes[GetCode(err)]
	if !ok {
		grpcCode = codes.Unknown
	}

	msg := err.Error()
	var coded *Error
	if errors.As(err, &coded) {
		msg = coded.Message
	}
	return status.Error(grpcCode, msg)
}

// FromGRPCError is the client side of ToGRPCError. Errors that carry no
// status are returned unchanged.
func FromGRPCError(err error) error {
	st, ok := status.FromError(err)
	if err == nil || !ok {
		return err
	}

	code := CodeInternal
	for c, g := range grpcCodes {
		if g == st.Code() {
			code = c
			break
		}
	}
	return New(code, st.Message())
}

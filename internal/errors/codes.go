package errors

import (
	"context"
	"errors"
)

// Code classifies a failure.
//
// The stream client maps its failure taxonomy onto these codes:
//   - Unavailable: the broker connection failed (ConnectionError)
//   - InvalidArgument: the broker refused the request (BrokerRejected)
//   - AlreadyExists: a consumer group with that name already exists
//   - NotFound: the log or group a read depends on does not exist
//   - FailedPrecondition: an ack named an entry that was not pending
//   - OutOfRange: a cursor was moved backwards
//
// Canceled and DeadlineExceeded come from contexts, Internal from handlers
// and anything uncoded.
type Code string

const (
	CodeOK                 Code = "OK"
	CodeCanceled           Code = "CANCELED"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeDeadlineExceeded   Code = "DEADLINE_EXCEEDED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeOutOfRange         Code = "OUT_OF_RANGE"
	CodeInternal           Code = "INTERNAL"
	CodeUnavailable        Code = "UNAVAILABLE"
)

// GetCode returns the code of the outermost *Error in err's chain. Bare
// context errors map to Canceled and DeadlineExceeded; anything else
// uncoded is Internal.
func GetCode(err error) Code {
	if err == nil {
		return CodeOK
	}

	var coded *Error
	switch {
	case errors.As(err, &coded):
		return coded.Code
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded
	default:
		return CodeInternal
	}
}

func IsNotFound(err error) bool           { return GetCode(err) == CodeNotFound }
func IsInvalidArgument(err error) bool    { return GetCode(err) == CodeInvalidArgument }
func IsAlreadyExists(err error) bool      { return GetCode(err) == CodeAlreadyExists }
func IsFailedPrecondition(err error) bool { return GetCode(err) == CodeFailedPrecondition }
func IsOutOfRange(err error) bool         { return GetCode(err) == CodeOutOfRange }
func IsInternal(err error) bool           { return GetCode(err) == CodeInternal }
func IsUnavailable(err error) bool        { return GetCode(err) == CodeUnavailable }
func IsDeadlineExceeded(err error) bool   { return GetCode(err) == CodeDeadlineExceeded }

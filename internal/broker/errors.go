package broker

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
	redisclient "github.com/KirkDiggler/streamclient/internal/redis"
)

// IsConnectionError reports a failure to talk to the broker at all
func IsConnectionError(err error) bool {
	return errors.IsUnavailable(err)
}

// IsRejected reports a request the broker refused
func IsRejected(err error) bool {
	return errors.IsInvalidArgument(err)
}

// IsGroupExists reports a CreateGroup on a group that already exists
func IsGroupExists(err error) bool {
	return errors.IsAlreadyExists(err)
}

// IsLogMissing reports a group read against a log or group that does not exist
func IsLogMissing(err error) bool {
	return errors.IsNotFound(err)
}

// IsNotPending reports an Ack for an entry that was not pending
func IsNotPending(err error) bool {
	return errors.IsFailedPrecondition(err)
}

func connectionError(log, message string) *errors.Error {
	return errors.Unavailable(message).WithMeta("log", log)
}

func rejected(log, message string) *errors.Error {
	return errors.InvalidArgument(message).WithMeta("log", log)
}

func groupExists(log, group string) *errors.Error {
	return errors.AlreadyExistsf("consumer group %q already exists", group).
		WithMeta("log", log).
		WithMeta("group", group)
}

func logMissing(log, group string) *errors.Error {
	return errors.NotFoundf("log %q has no consumer group %q", log, group).
		WithMeta("log", log).
		WithMeta("group", group)
}

func notPending(log, group string, id entities.StreamID) *errors.Error {
	return errors.FailedPreconditionf("entry %s is not pending", id).
		WithMeta("log", log).
		WithMeta("group", group).
		WithMeta("id", id.String())
}

// classify maps a go-redis failure onto the broker taxonomy. Replies the
// server sent back are rejections unless they name a known condition;
// everything else means the connection is unusable.
func classify(ctx context.Context, err error, op, log string) error {
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.WrapWithCodef(err, errors.GetCode(ctxErr), "%s %s interrupted", op, log).
			WithMeta("log", log)
	}

	var replyErr redisclient.Error
	if stderrors.As(err, &replyErr) {
		msg := err.Error()
		switch {
		case strings.HasPrefix(msg, "BUSYGROUP"):
			return errors.WrapWithCodef(err, errors.CodeAlreadyExists, "%s %s", op, log).WithMeta("log", log)
		case strings.HasPrefix(msg, "NOGROUP"):
			return errors.WrapWithCodef(err, errors.CodeNotFound, "%s %s", op, log).WithMeta("log", log)
		default:
			return errors.WrapWithCodef(err, errors.CodeInvalidArgument, "%s %s rejected", op, log).WithMeta("log", log)
		}
	}

	return errors.WrapWithCodef(err, errors.CodeUnavailable, "%s %s failed", op, log).WithMeta("log", log)
}

func validateLog(log string) error {
	if log == "" {
		return rejected(log, "log name is required")
	}
	return nil
}

func validateGroup(log, group string) error {
	if err := validateLog(log); err != nil {
		return err
	}
	if group == "" {
		return rejected(log, "group name is required")
	}
	return nil
}

func validateCount(log string, count int64) error {
	if count <= 0 {
		return rejected(log, "count must be positive")
	}
	return nil
}

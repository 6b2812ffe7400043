// Package errors provides coded errors for the stream client.
//
// Every failure a broker or reader surfaces carries a Code, a message, an
// optional cause and free-form metadata (log, group and id are the keys used
// throughout the codebase).
//
// Creating errors:
//
//	err := errors.NotFoundf("log %q has no group %q", log, group)
//
// Adding metadata:
//
//	err := errors.FailedPrecondition("entry is not pending").
//	    WithMeta("log", log).
//	    WithMeta("id", id.String())
//
// Wrapping errors keeps the code of a coded cause:
//
//	if err := client.Ack(ctx, input); err != nil {
//	    return errors.Wrap(err, "failed to ack entry")
//	}
//
// Checking errors:
//
//	if errors.IsAlreadyExists(err) {
//	    // group was created by another worker
//	}
//
// Errors convert to gRPC statuses with ToGRPCError for the health and
// admin surface of the worker process.
package errors

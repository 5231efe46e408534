package pool

import (
	"fmt"

	"github.com/ajitpratap0/pooling/pkg/errors"
)

// Sentinel errors returned by pools. Match them with errors.Is; returned
// errors wrap them with the pool key and object identity as details.
var (
	// ErrInvalidArgument reports a caller error: a nil factory, a zero
	// object passed to Release, or an object of the wrong type.
	ErrInvalidArgument = errors.Sentinel(errors.ErrorTypeValidation, "invalid argument")

	// ErrPoolOverflowed reports that capacity is exhausted and the
	// overflow strategy refused to hand out an object.
	ErrPoolOverflowed = errors.Sentinel(errors.ErrorTypeOverflow, "pool overflowed")

	// ErrNotInUse reports a release or discard of an object that is
	// resting in the pool.
	ErrNotInUse = errors.Sentinel(errors.ErrorTypeConflict, "object is not in use")

	// ErrUnknownObject reports a discard of an object the pool never owned.
	ErrUnknownObject = errors.Sentinel(errors.ErrorTypeNotFound, "object is not owned by the pool")

	// ErrDisposed reports use of a disposed pool or instance.
	ErrDisposed = errors.Sentinel(errors.ErrorTypeClosed, "pool disposed")
)

func invalidArgument(message string) *errors.Error {
	return errors.Wrap(ErrInvalidArgument, errors.ErrorTypeValidation, message)
}

func overflowed(key any) *errors.Error {
	return errors.Wrap(ErrPoolOverflowed, errors.ErrorTypeOverflow,
		fmt.Sprintf("pool with key %v is overflowed", key)).
		WithDetail("key", key)
}

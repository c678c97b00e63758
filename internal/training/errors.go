package training

import (
	"context"
	"errors"
)

// ErrCheckpointNotFound is returned by Run when reload was requested but no
// previous weights exist. The run aborts before the first epoch.
var ErrCheckpointNotFound = errors.New("reload requested but no checkpoint found")

// isCancellation reports whether err stems from ctx being cancelled, as
// opposed to a collaborator failure.
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

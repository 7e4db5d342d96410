package polls

import (
	"errors"
	"fmt"
)

var ErrGroupNotFound = errors.New("target group not found")

// GroupNotFoundError reports a chat list without the target group.
type GroupNotFoundError struct {
	Name string
}

func (e *GroupNotFoundError) Error() string {
	return fmt.Sprintf("group %q not found", e.Name)
}

func (e *GroupNotFoundError) Is(target error) bool { return target == ErrGroupNotFound }

// SendError wraps a failure to deliver the poll to a resolved group.
type SendError struct {
	GroupID string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send poll to %s: %v", e.GroupID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ExhaustedRetriesError carries the last attempt's error once every
// attempt has failed.
type ExhaustedRetriesError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Err }

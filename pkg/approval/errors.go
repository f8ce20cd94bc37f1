package approval

import "fmt"

// NotFoundError reports an unknown approval id
type NotFoundError struct {
	ApprovalID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("approval %s not found", e.ApprovalID)
}

// AlreadyDecidedError reports a decision applied to a terminal request
type AlreadyDecidedError struct {
	ApprovalID string
	State      State
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("approval %s is already %s", e.ApprovalID, e.State)
}

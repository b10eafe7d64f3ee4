package db

import "fmt"

// ErrGroupNotFound indicates no group exists with the given join code
type ErrGroupNotFound struct {
	GroupID string
}

func (e *ErrGroupNotFound) Error() string {
	return fmt.Sprintf("group not found: %s", e.GroupID)
}

// ErrEmptyGroup indicates the group has no member list or an empty one
type ErrEmptyGroup struct {
	GroupID string
}

func (e *ErrEmptyGroup) Error() string {
	return fmt.Sprintf("group has no members: %s", e.GroupID)
}

// ErrUserNotFound indicates no profile exists for an email
type ErrUserNotFound struct {
	Email string
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.Email)
}

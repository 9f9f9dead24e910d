package models

import "errors"

var (
	// ErrNotFound is returned by stores and repositories when a key is absent.
	ErrNotFound = errors.New("not found")

	ErrValidation     = errors.New("validation failed")
	ErrIncompleteCode = errors.New("please enter the full 6-character code")
	ErrCodeNotFound   = errors.New("code not found")
	ErrOwnCode        = errors.New("cannot join own code")
	ErrNotSignedUp    = errors.New("session has no user")
	ErrNotPaired      = errors.New("session is not paired")
	ErrAlreadyPaired  = errors.New("session is already paired")
)

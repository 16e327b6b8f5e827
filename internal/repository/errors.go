package repository

import "errors"

// ErrStaleTransition indicates a conditional status update matched no row because
// the entity no longer holds the expected state.
var ErrStaleTransition = errors.New("entity state changed before transition was applied")

// ErrPendingApplicationExists reports a second pending upgrade application for the same tutor.
var ErrPendingApplicationExists = errors.New("tutor already has a pending upgrade application")

package session

import "errors"

const (
	// MaxTitleLength bounds session titles at creation and rename.
	MaxTitleLength = 200

	// MaxHistoryLimit is the absolute maximum messages loaded at once.
	MaxHistoryLimit int32 = 10000
)

// Sentinel errors for session operations, checked with errors.Is.
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTitleTooLong indicates a title exceeds MaxTitleLength.
	ErrTitleTooLong = errors.New("session title too long")
)

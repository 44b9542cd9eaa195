package ai

import "errors"

// ErrUnavailable marks a provider that is not configured or cannot serve the
// call; callers treat it the same as any transient provider failure.
var ErrUnavailable = errors.New("ai provider unavailable")

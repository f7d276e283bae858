package domain

import "errors"

// ErrPermissionDenied is wrapped by capture backends when the platform refuses
// microphone access.
var ErrPermissionDenied = errors.New("microphone permission denied")

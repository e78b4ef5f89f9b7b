// Package repo holds what the storage backends share: their error values.
package repo

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrReportNotFound = errors.New("report not found")
	// ErrStatusConflict means the report exists but is not in the status the
	// write was conditioned on.
	ErrStatusConflict = errors.New("report status conflict")
)

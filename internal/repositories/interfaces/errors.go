package interfaces

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict means another writer committed first; reload and retry.
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicate       = errors.New("duplicate record")
	// ErrConditionFailed means a conditional update matched nothing because the
	// record left the expected state.
	ErrConditionFailed = errors.New("condition not met")
)

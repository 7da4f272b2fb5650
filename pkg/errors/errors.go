package errors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyKey         = errors.New("empty key")
	ErrInvalidData      = errors.New("invalid data type")
	ErrEntityExists     = errors.New("entity already exists")
	ErrInvalidQuery     = errors.New("invalid query parameter")
	ErrInvalidRunConfig = errors.New("invalid run config")
	ErrRunNotStarted    = errors.New("run has not started")
)

package storage

import (
	"errors"

	pkgerrors "github.com/absmach/tuner/pkg/errors"
)

var (
	ErrUnsupportedType = errors.New("unsupported storage type")
	ErrNotFound        = pkgerrors.ErrNotFound
)

package models

import (
	"errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrBackend    = errors.New("backend error")

	ErrUnsupportedFormat = errors.New("unsupported file format")
)

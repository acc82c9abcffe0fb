package store

import (
	"annotate/internal/models"
)

// Aliases of the model sentinels, errors.Is matches either name.
var (
	ErrNotFound   = models.ErrNotFound
	ErrValidation = models.ErrValidation
	ErrBackend    = models.ErrBackend
)

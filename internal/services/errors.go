package services

import (
	"fmt"

	apperrors "github.com/yungbote/neurobridge-mastery/internal/pkg/errors"
)

var (
	// ErrConcurrentUpdate means a progress row changed between read and write inside a
	// chunk transaction.
	ErrConcurrentUpdate  = fmt.Errorf("review progress: %w", apperrors.ErrConflict)
	ErrPrimitiveNotFound = fmt.Errorf("primitive %w", apperrors.ErrNotFound)
	ErrProgressNotFound  = fmt.Errorf("progress record %w", apperrors.ErrNotFound)
)

// progressNotFoundMessage is the per-outcome error reported for outcomes without progress.
const progressNotFoundMessage = "Progress record not found"

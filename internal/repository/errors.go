package repository

import (
	"errors"

	"achieveit/internal/apperr"
)

// AppError maps a store failure onto the user-facing taxonomy.
func AppError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		e := apperr.NewNotFound(resource, id)
		e.Err = err
		return e
	case errors.Is(err, ErrPermissionDenied):
		return apperr.Wrap(apperr.CodePermissionDenied, "You do not have access to this data.", err)
	case errors.Is(err, ErrInvalidPath):
		return apperr.Wrap(apperr.CodeValidation, "Invalid document reference.", err)
	default:
		return apperr.Wrap(apperr.CodeRemoteUnavailable, "The data service is unreachable. Please try again.", err)
	}
}

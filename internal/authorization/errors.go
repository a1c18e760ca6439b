package authorization

import "github.com/smallbiznis/pitchdeck/internal/apperrors"

var (
	ErrInvalidActor  = apperrors.New(apperrors.KindUnauthenticated, "invalid_actor", "caller identity is missing")
	ErrInvalidObject = apperrors.New(apperrors.KindValidationFailed, "invalid_object", "authorization object is required")
	ErrInvalidAction = apperrors.New(apperrors.KindValidationFailed, "invalid_action", "authorization action is required")

	// ErrForbidden is returned when the caller's account role lacks the capability.
	ErrForbidden = apperrors.ErrManagersOnly
)

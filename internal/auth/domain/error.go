package domain

import "github.com/smallbiznis/pitchdeck/internal/apperrors"

var (
	ErrInvalidCredentials = apperrors.New(apperrors.KindUnauthenticated, "invalid_credentials", "invalid email or password")
	ErrUserExists         = apperrors.New(apperrors.KindConflict, "user_exists", "email or display name already registered")
	ErrUserNotFound       = apperrors.New(apperrors.KindNotFound, "user_not_found", "user not found")
	ErrInvalidSession     = apperrors.New(apperrors.KindUnauthenticated, "invalid_session", "session is invalid")
	ErrSessionExpired     = apperrors.New(apperrors.KindUnauthenticated, "session_expired", "session expired")
	ErrSessionRevoked     = apperrors.New(apperrors.KindUnauthenticated, "session_revoked", "session revoked")
	ErrSessionNotFound    = apperrors.New(apperrors.KindUnauthenticated, "session_not_found", "session not found")

	ErrInvalidEmail       = apperrors.New(apperrors.KindValidationFailed, "invalid_email", "email address is invalid")
	ErrWeakPassword       = apperrors.New(apperrors.KindValidationFailed, "weak_password", "password must be at least 8 characters")
	ErrInvalidDisplayName = apperrors.New(apperrors.KindValidationFailed, "invalid_display_name", "display name is required")
)

package authorization

import (
	"context"

	"github.com/smallbiznis/pitchdeck/internal/identity"
)

// Service decides whether an account role may perform an action.
// Organisation membership is checked by the domain services, not here.
type Service interface {
	Authorize(ctx context.Context, caller identity.Identity, object string, action string) error
}

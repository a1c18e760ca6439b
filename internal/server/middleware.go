package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	auditdomain "github.com/smallbiznis/pitchdeck/internal/audit/domain"
	"github.com/smallbiznis/pitchdeck/internal/auditcontext"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	obscontext "github.com/smallbiznis/pitchdeck/internal/observability/context"
	organizationdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
	"go.uber.org/zap"
)

const contextOrganizationKey = "organization"

// AuthRequired resolves the caller from the session cookie or a bearer access token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var (
			caller identity.Identity
			err    error
		)
		if token, ok := s.sessions.ReadBearer(c); ok {
			caller, err = s.authsvc.AuthenticateAccessToken(ctx, token)
		} else if sid, ok := s.sessions.ReadToken(c); ok {
			caller, err = s.authsvc.Authenticate(ctx, sid)
		} else {
			err = apperrors.ErrUnauthenticated
		}
		if err != nil {
			AbortWithError(c, err)
			return
		}

		actorID := caller.UserID.String()
		ctx = identity.WithIdentity(ctx, caller)
		ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeUser), actorID)
		ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeUser), actorID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// authorize checks the caller's account role against the policy for object and action.
func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			AbortWithError(c, apperrors.ErrUnauthenticated)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), caller, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// requireMember loads the :orgId organisation and rejects callers outside it.
func (s *Server) requireMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			AbortWithError(c, apperrors.ErrUnauthenticated)
			return
		}
		orgID, err := parseIDParam(c, "orgId")
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		org, err := s.organizationSvc.GetByID(ctx, orgID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		member, err := s.organizationSvc.IsMember(ctx, caller.UserID, orgID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !member {
			AbortWithError(c, apperrors.ErrNotMember)
			return
		}

		c.Request = c.Request.WithContext(obscontext.WithOrgID(ctx, orgID.String()))
		c.Set(contextOrganizationKey, org)
		c.Next()
	}
}

func (s *Server) rateLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		caller, ok := callerFrom(c)
		if !ok {
			AbortWithError(c, apperrors.ErrUnauthenticated)
			return
		}

		result, err := s.limiter.Allow(c.Request.Context(), endpoint, caller.UserID)
		if err != nil {
			// Fail open when Redis is unreachable.
			s.log.Warn("rate limit check failed", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}
		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}

func callerFrom(c *gin.Context) (identity.Identity, bool) {
	return identity.FromContext(c.Request.Context())
}

func organizationFrom(c *gin.Context) (*organizationdomain.Organization, bool) {
	value, ok := c.Get(contextOrganizationKey)
	if !ok {
		return nil, false
	}
	org, ok := value.(*organizationdomain.Organization)
	return org, ok && org != nil
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, newValidationError(name, "invalid_id", name+" must be a numeric id")
	}
	return id, nil
}

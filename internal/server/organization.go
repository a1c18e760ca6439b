package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	organizationdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name string `json:"name" binding:"required,min=3"`
}

// targetRequest names the account a manager grant or an invitation is for.
type targetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), caller, organizationdomain.CreateOrganizationRequest{
		Name: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": org})
}

func (s *Server) ListOrganizations(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return
	}

	items, err := s.organizationSvc.ListByUser(c.Request.Context(), caller.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetOrganization(c *gin.Context) {
	org, ok := organizationFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrOrgNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": org})
}

func (s *Server) AddManager(c *gin.Context) {
	caller, orgID, req, ok := s.bindTargetRequest(c)
	if !ok {
		return
	}

	membership, err := s.organizationSvc.AddManager(c.Request.Context(), caller, orgID, req.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": membership})
}

func (s *Server) bindTargetRequest(c *gin.Context) (identity.Identity, snowflake.ID, targetRequest, bool) {
	var req targetRequest

	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return caller, 0, req, false
	}
	orgID, err := parseIDParam(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return caller, 0, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return caller, 0, req, false
	}
	return caller, orgID, req, true
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	invitationdomain "github.com/smallbiznis/pitchdeck/internal/invitation/domain"
)

type respondInviteRequest struct {
	Decision string `json:"decision" binding:"required,oneof=ACCEPT REJECT"`
}

// CreateInvite invites a songwriter into the organisation.
func (s *Server) CreateInvite(c *gin.Context) {
	caller, orgID, req, ok := s.bindTargetRequest(c)
	if !ok {
		return
	}

	invite, err := s.invitationSvc.Invite(c.Request.Context(), caller, orgID, req.Email, identity.RoleSongwriter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invite})
}

func (s *Server) ListInvites(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return
	}

	items, err := s.invitationSvc.ListPending(c.Request.Context(), caller.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) RespondInvite(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return
	}
	inviteID, err := parseIDParam(c, "inviteId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req respondInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	decision, err := invitationdomain.ParseDecision(req.Decision)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invite, err := s.invitationSvc.Respond(c.Request.Context(), caller, inviteID, decision)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invite})
}

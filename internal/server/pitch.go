package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	pitchdomain "github.com/smallbiznis/pitchdeck/internal/pitch/domain"
)

type targetAuthorRequest struct {
	MediaID      snowflake.ID `json:"media_id" binding:"required"`
	TargetUserID snowflake.ID `json:"target_user_id" binding:"required"`
	TargetOrgID  snowflake.ID `json:"target_org_id" binding:"required"`
}

type createPitchRequest struct {
	Description   string                `json:"description" binding:"required,min=1"`
	Tags          []string              `json:"tags"`
	TargetAuthors []targetAuthorRequest `json:"target_authors" binding:"dive"`
}

type updatePitchRequest struct {
	Description *string   `json:"description" binding:"omitempty,min=1"`
	Tags        *[]string `json:"tags"`
}

func (s *Server) CreatePitch(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return
	}
	mediaID, err := parseIDParam(c, "mediaId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createPitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	targets := make([]pitchdomain.TargetAuthor, 0, len(req.TargetAuthors))
	for _, t := range req.TargetAuthors {
		targets = append(targets, pitchdomain.TargetAuthor{
			MediaID:      t.MediaID,
			TargetUserID: t.TargetUserID,
			TargetOrgID:  t.TargetOrgID,
		})
	}

	created, err := s.pitchSvc.Create(c.Request.Context(), caller, pitchdomain.CreateRequest{
		MediaID:     mediaID,
		Description: req.Description,
		Tags:        req.Tags,
		Targets:     targets,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) ListPitches(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return
	}

	items, err := s.pitchSvc.ListForTargetUser(c.Request.Context(), caller.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) UpdatePitch(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return
	}
	pitchID, err := parseIDParam(c, "pitchId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updatePitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	if req.Description == nil && req.Tags == nil {
		AbortWithError(c, pitchdomain.ErrEmptyUpdate)
		return
	}

	updated, err := s.pitchSvc.Update(c.Request.Context(), caller, pitchID, pitchdomain.UpdateRequest{
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (s *Server) DeletePitch(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return
	}
	pitchID, err := parseIDParam(c, "pitchId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.pitchSvc.Delete(c.Request.Context(), caller, pitchID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

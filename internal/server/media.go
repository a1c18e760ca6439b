package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	mediadomain "github.com/smallbiznis/pitchdeck/internal/media/domain"
	"github.com/smallbiznis/pitchdeck/internal/storage"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for the form fields and part headers around the file.
const multipartOverhead = 1 << 20

const (
	formFieldFile     = "file"
	formFieldOrgID    = "org_id"
	formFieldTitle    = "title"
	formFieldDuration = "duration"
)

// UploadMedia stores the file and registers it as media of the given organisation.
func (s *Server) UploadMedia(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.store.MaxBytes()+multipartOverhead)

	fileHeader, err := c.FormFile(formFieldFile)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, storage.ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, newValidationError(formFieldFile, "required", "file is required"))
		return
	}

	orgID, err := snowflake.ParseString(strings.TrimSpace(c.PostForm(formFieldOrgID)))
	if err != nil || orgID <= 0 {
		AbortWithError(c, newValidationError(formFieldOrgID, "invalid_id", "org_id must be a numeric id"))
		return
	}

	ctx := c.Request.Context()

	// Reject non-members before anything is written to storage.
	member, err := s.organizationSvc.IsMember(ctx, caller.UserID, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !member {
		AbortWithError(c, apperrors.ErrNotMember)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	stored, err := s.store.Save(ctx, storage.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	title := strings.TrimSpace(c.PostForm(formFieldTitle))
	if title == "" {
		title = titleFromFilename(fileHeader.Filename)
	}

	created, err := s.mediaSvc.Create(ctx, caller, mediadomain.CreateRequest{
		OrgID:       orgID,
		Title:       title,
		Duration:    c.PostForm(formFieldDuration),
		FilePath:    stored.Path,
		ContentType: stored.ContentType,
		SizeBytes:   stored.Size,
	})
	if err != nil {
		if removeErr := s.store.Remove(context.WithoutCancel(ctx), stored.Path); removeErr != nil {
			s.log.Warn("failed to remove orphaned upload",
				zap.String("path", stored.Path),
				zap.Error(removeErr),
			)
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) ListMedia(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		AbortWithError(c, apperrors.ErrUnauthenticated)
		return
	}

	items, err := s.mediaSvc.ListForUser(c.Request.Context(), caller.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func titleFromFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

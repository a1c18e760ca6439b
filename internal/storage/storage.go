// Package storage writes uploaded media files to a blob filesystem.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"github.com/smallbiznis/pitchdeck/internal/clock"
	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

//go:generate mockgen -source=storage.go -destination=mocks/mock_store.go -package=mocks

const (
	mediaDir       = "media"
	sniffLen       = 3072
	octetStream    = "application/octet-stream"
	fallbackBase   = "upload"
	maxBaseNameLen = 64
)

var (
	ErrUnsupportedMediaType = apperrors.New(apperrors.KindUnsupportedMediaType, "unsupported_media_type", "file type is not allowed")
	ErrPayloadTooLarge      = apperrors.New(apperrors.KindPayloadTooLarge, "payload_too_large", "file exceeds the upload limit")
	ErrEmptyUpload          = apperrors.New(apperrors.KindValidationFailed, "empty_upload", "file is empty")
)

var contentTypeAliases = map[string]string{
	"audio/mp3":   "audio/mpeg",
	"audio/x-wav": "audio/wav",
	"audio/wave":  "audio/wav",
	"audio/x-mp4": "video/mp4",
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Upload is a file as received from the client. Size may be -1 when unknown.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// StoredFile describes a saved upload. Path is relative to the store root.
type StoredFile struct {
	Path        string
	ContentType string
	Size        int64
}

type Store interface {
	Save(ctx context.Context, upload Upload) (*StoredFile, error)
	Remove(ctx context.Context, path string) error
	MaxBytes() int64
}

type fsStore struct {
	fs     afero.Fs
	policy *config.UploadPolicyHolder
	clock  clock.Clock
	log    *zap.Logger
}

func New(fs afero.Fs, policy *config.UploadPolicyHolder, clk clock.Clock, log *zap.Logger) Store {
	return &fsStore{fs: fs, policy: policy, clock: clk, log: log.Named("storage")}
}

// NewFromConfig roots the store at cfg.Storage.Root on the local disk.
func NewFromConfig(cfg config.Config, policy *config.UploadPolicyHolder, clk clock.Clock, log *zap.Logger) (Store, error) {
	root := strings.TrimSpace(cfg.Storage.Root)
	if root == "" {
		root = "uploads"
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return New(afero.NewBasePathFs(osFs, root), policy, clk, log), nil
}

func (s *fsStore) MaxBytes() int64 {
	return s.policy.Get().MaxBytes
}

func (s *fsStore) Save(ctx context.Context, upload Upload) (*StoredFile, error) {
	if upload.Body == nil {
		return nil, ErrEmptyUpload
	}
	policy := s.policy.Get()
	if upload.Size > policy.MaxBytes {
		return nil, ErrPayloadTooLarge
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(upload.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrEmptyUpload
	}

	contentType := NormalizeContentType(upload.ContentType)
	if contentType == "" || contentType == octetStream {
		contentType = NormalizeContentType(mimetype.Detect(head).String())
	}
	if !allowed(policy.AllowedContentTypes, contentType) {
		return nil, ErrUnsupportedMediaType
	}

	rel := path.Join(mediaDir, s.fileName(upload.Filename, contentType))
	if err := s.fs.MkdirAll(mediaDir, 0o755); err != nil {
		return nil, err
	}
	f, err := s.fs.Create(rel)
	if err != nil {
		return nil, err
	}

	body := io.MultiReader(bytes.NewReader(head), upload.Body)
	written, copyErr := io.Copy(f, io.LimitReader(body, policy.MaxBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		s.discard(rel)
		return nil, copyErr
	case closeErr != nil:
		s.discard(rel)
		return nil, closeErr
	case written > policy.MaxBytes:
		s.discard(rel)
		return nil, ErrPayloadTooLarge
	}

	return &StoredFile{Path: rel, ContentType: contentType, Size: written}, nil
}

func (s *fsStore) Remove(_ context.Context, rel string) error {
	clean := path.Clean("/" + rel)
	if !strings.HasPrefix(clean, "/"+mediaDir+"/") {
		return errors.New("storage: path outside media directory")
	}
	return s.fs.Remove(strings.TrimPrefix(clean, "/"))
}

func (s *fsStore) discard(rel string) {
	if err := s.fs.Remove(rel); err != nil {
		s.log.Warn("failed to remove partial upload", zap.String("path", rel), zap.Error(err))
	}
}

// fileName builds <sanitised-base>-<ulid><ext>. The extension always comes
// from the accepted content type, never from the client's file name.
func (s *fsStore) fileName(original, contentType string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	ext := extensionFor(contentType)

	base = unsafeNameChars.ReplaceAllString(base, "_")
	if base == "" || base == "." {
		base = fallbackBase
	}
	if len(base) > maxBaseNameLen {
		base = base[:maxBaseNameLen]
	}

	id := ulid.MustNew(ulid.Timestamp(s.clock.Now()), ulid.DefaultEntropy())
	return base + "-" + strings.ToLower(id.String()) + ext
}

// NormalizeContentType drops parameters, lower-cases and resolves aliases.
func NormalizeContentType(raw string) string {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(raw))
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(raw, ";", 2)[0])
	}
	mediaType = strings.ToLower(mediaType)
	if alias, ok := contentTypeAliases[mediaType]; ok {
		return alias
	}
	return mediaType
}

func allowed(list []string, contentType string) bool {
	for _, candidate := range list {
		if NormalizeContentType(candidate) == contentType {
			return true
		}
	}
	return false
}

func extensionFor(contentType string) string {
	if mt := mimetype.Lookup(contentType); mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return ""
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"immobili-data/internal/domain"
	"immobili-data/internal/repository"
)

// BucketKind selects which attachment a document operation targets. Each
// kind has its own bucket and its own path/URL column pair on the record.
type BucketKind string

const (
	BucketImages    BucketKind = "immagine"
	BucketContracts BucketKind = "contratto"
)

// ErrPropertyNotFound is returned when the target record does not exist.
var ErrPropertyNotFound = errors.New("proprieta not found")

// ObjectBackend is the raw bucket API: local filesystem or hosted storage.
type ObjectBackend interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	PublicURL(bucket, key string) string
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, bucket, key string) error
}

// UploadResult reports where an attachment landed.
type UploadResult struct {
	Path      string `json:"path"`
	PublicURL string `json:"public_url,omitempty"`
}

// DocumentStore uploads attachments and keeps the record's path/URL columns
// in sync. Upload and record-update are two separate calls with no
// compensating rollback: a failed link after a successful upload orphans the
// object, which is logged and reported, not masked.
type DocumentStore struct {
	backend         ObjectBackend
	repo            repository.PropertiesRepo
	imagesBucket    string
	contractsBucket string
	logger          *zap.Logger
}

func NewDocumentStore(backend ObjectBackend, repo repository.PropertiesRepo, imagesBucket, contractsBucket string, logger *zap.Logger) *DocumentStore {
	return &DocumentStore{
		backend:         backend,
		repo:            repo,
		imagesBucket:    imagesBucket,
		contractsBucket: contractsBucket,
		logger:          logger,
	}
}

func (s *DocumentStore) bucket(kind BucketKind) string {
	if kind == BucketContracts {
		return s.contractsBucket
	}
	return s.imagesBucket
}

// UploadAndLink sanitizes the filename, stores the bytes under
// <propertyId>/<name> in the kind's bucket, then links path (and public URL
// when requested) on the record.
func (s *DocumentStore) UploadAndLink(ctx context.Context, propertyID int64, data []byte, filename string, kind BucketKind, makePublicURL bool) (*UploadResult, error) {
	p, err := s.repo.Get(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPropertyNotFound
	}

	name := SanitizeFilename(filename)
	key := fmt.Sprintf("%d/%s", propertyID, name)
	bucket := s.bucket(kind)

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.backend.Upload(ctx, bucket, key, data, contentType); err != nil {
		return nil, fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}

	res := &UploadResult{Path: key}
	if makePublicURL {
		res.PublicURL = s.backend.PublicURL(bucket, key)
	}

	upd := &domain.PropertyUpdate{}
	url := res.PublicURL
	if kind == BucketContracts {
		upd.ContrattoPath = &res.Path
		upd.ContrattoURL = &url
	} else {
		upd.ImmaginePath = &res.Path
		upd.ImmagineURL = &url
	}
	ok, err := s.repo.Update(ctx, propertyID, upd)
	if err != nil || !ok {
		// The object is already stored; the record no longer points at it.
		s.logger.Warn("uploaded object is orphaned: record link failed",
			zap.Int64("property_id", propertyID),
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err))
		if err != nil {
			return nil, fmt.Errorf("uploaded but failed to link record: %w", err)
		}
		return nil, ErrPropertyNotFound
	}
	return res, nil
}

// SignedURL returns a time-limited URL for the stored attachment, or "" when
// the record has no path for this kind.
func (s *DocumentStore) SignedURL(ctx context.Context, propertyID int64, kind BucketKind, ttl time.Duration) (string, error) {
	p, err := s.repo.Get(ctx, propertyID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", ErrPropertyNotFound
	}

	path := p.ImmaginePath
	if kind == BucketContracts {
		path = p.ContrattoPath
	}
	if !path.Valid || path.String == "" {
		return "", nil
	}
	return s.backend.SignedURL(ctx, s.bucket(kind), path.String, ttl)
}

// Remove deletes the stored object (when a path exists) and clears both the
// path and URL columns; it reports whether the record update succeeded.
func (s *DocumentStore) Remove(ctx context.Context, propertyID int64, kind BucketKind) (bool, error) {
	p, err := s.repo.Get(ctx, propertyID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, ErrPropertyNotFound
	}

	path := p.ImmaginePath
	if kind == BucketContracts {
		path = p.ContrattoPath
	}
	if path.Valid && path.String != "" {
		if err := s.backend.Remove(ctx, s.bucket(kind), path.String); err != nil {
			return false, fmt.Errorf("failed to remove %s/%s: %w", s.bucket(kind), path.String, err)
		}
	}

	empty := ""
	upd := &domain.PropertyUpdate{}
	if kind == BucketContracts {
		upd.ContrattoPath = &empty
		upd.ContrattoURL = &empty
	} else {
		upd.ImmaginePath = &empty
		upd.ImmagineURL = &empty
	}
	return s.repo.Update(ctx, propertyID, upd)
}

// SanitizeFilename produces a storage-safe key segment: lowercase, with runs
// of characters outside [a-z0-9._-] collapsed to a single hyphen. An empty
// result is replaced by a generated token so keys never collide on "".
func SanitizeFilename(name string) string {
	name = strings.ToLower(name)

	var b strings.Builder
	lastHyphen := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	out := strings.Trim(b.String(), "-")
	if strings.Trim(out, ".-_") == "" {
		return uuid.NewString()
	}
	return out
}

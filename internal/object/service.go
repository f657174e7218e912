package object

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/cargohold/service/internal/bucket"
	"github.com/cargohold/service/internal/config"
	"github.com/cargohold/service/internal/storage"
)

// ErrBucketNotFound is returned when the target bucket does not exist in the
// caller's project.
var ErrBucketNotFound = errors.New("bucket not found")

// ErrInvalidUpload is returned when an upload fails validation (type, size,
// extension).
var ErrInvalidUpload = errors.New("invalid upload")

// dangerousExtensions are rejected regardless of the declared MIME type.
var dangerousExtensions = map[string]bool{
	"php": true, "php3": true, "php4": true, "php5": true, "phtml": true,
	"exe": true, "bat": true, "cmd": true, "com": true, "scr": true,
	"js": true, "vbs": true, "ps1": true, "sh": true, "py": true,
	"pl": true, "rb": true, "asp": true, "aspx": true, "jsp": true,
}

// BucketSource resolves a bucket scoped to its owning project.
type BucketSource interface {
	GetByName(ctx context.Context, projectID, name string) (*bucket.Bucket, error)
}

// Service is the byte-transfer layer: it orders the physical write against
// the index insert so that a failure of either step never leaves a
// half-committed object behind.
type Service struct {
	repo    Repository
	buckets BucketSource
	store   storage.Storage
	cfg     *config.Config
}

// NewService creates a new object Service.
func NewService(repo Repository, buckets BucketSource, store storage.Storage, cfg *config.Config) *Service {
	return &Service{repo: repo, buckets: buckets, store: store, cfg: cfg}
}

// Put validates and stores an upload. The bytes are written first under a
// server-generated key; the index row is inserted only after a complete
// write, and a failed insert deletes the just-written bytes.
func (s *Service) Put(ctx context.Context, projectID, bucketName, filename, mimeType string, size int64, r io.Reader) (*Record, error) {
	b, err := s.buckets.GetByName(ctx, projectID, bucketName)
	if errors.Is(err, bucket.ErrNotFound) {
		return nil, ErrBucketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve bucket: %w", err)
	}

	if err := s.validateUpload(filename, mimeType, size); err != nil {
		return nil, err
	}

	// The storage key is never derived from the client filename: uploads
	// cannot traverse directories or overwrite each other.
	key := storageKey(projectID, bucketName, filename)

	hasher := sha256.New()
	if err := s.store.Upload(ctx, key, io.TeeReader(r, hasher), size, mimeType); err != nil {
		return nil, fmt.Errorf("write object bytes: %w", err)
	}

	rec := &Record{
		BucketID:    b.ID,
		Filename:    filename,
		StoragePath: key,
		MimeType:    mimeType,
		Size:        size,
		ContentHash: hex.EncodeToString(hasher.Sum(nil)),
		IsPublic:    b.IsPublic,
		ProjectID:   projectID,
	}

	id, err := s.repo.Insert(ctx, rec)
	if err != nil {
		// Compensate: the bytes exist but the index does not, so the write
		// must be undone before the error propagates.
		if delErr := s.store.Delete(ctx, key); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			log.Printf("object: orphaned bytes at %s after failed insert: %v", key, delErr)
		}
		return nil, fmt.Errorf("index object: %w", err)
	}
	rec.ID = id
	return rec, nil
}

// Get opens a byte stream for the resolved record. The caller streams it to
// the client and closes it; the whole file is never buffered.
func (s *Service) Get(ctx context.Context, rec *Record) (io.ReadCloser, error) {
	stream, err := s.store.Open(ctx, rec.StoragePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return stream, err
}

// Delete removes the object's bytes and index row. A missing physical file
// is tolerated (and logged as consistency drift) so the row cannot become
// permanently unreachable garbage; any other storage failure aborts before
// the row is touched.
func (s *Service) Delete(ctx context.Context, projectID, bucketName, filename string) error {
	rec, err := s.repo.FindScoped(ctx, projectID, bucketName, filename)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, rec.StoragePath); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete object bytes: %w", err)
		}
		log.Printf("object: %s had no bytes at %s, removing index row anyway", rec.ID, rec.StoragePath)
	}

	return s.repo.Remove(ctx, rec.ID)
}

// List returns the bucket's objects, oldest first.
func (s *Service) List(ctx context.Context, projectID, bucketName string) ([]*Record, error) {
	if _, err := s.buckets.GetByName(ctx, projectID, bucketName); err != nil {
		if errors.Is(err, bucket.ErrNotFound) {
			return nil, ErrBucketNotFound
		}
		return nil, fmt.Errorf("resolve bucket: %w", err)
	}
	return s.repo.List(ctx, projectID, bucketName)
}

// FindScoped resolves (bucket, filename) within the caller's project.
func (s *Service) FindScoped(ctx context.Context, projectID, bucketName, filename string) (*Record, error) {
	return s.repo.FindScoped(ctx, projectID, bucketName, filename)
}

func (s *Service) validateUpload(filename, mimeType string, size int64) error {
	if size <= 0 || size > s.cfg.MaxUploadSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrInvalidUpload, size, s.cfg.MaxUploadSize)
	}
	if !s.cfg.MIMEAllowed(mimeType) {
		return fmt.Errorf("%w: mime type %q not allowed", ErrInvalidUpload, mimeType)
	}
	if ext := fileExt(filename); dangerousExtensions[ext] {
		return fmt.Errorf("%w: extension %q not allowed", ErrInvalidUpload, ext)
	}
	return nil
}

// fileExt returns the lowercased extension without the dot.
func fileExt(filename string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}

// storageKey builds the project/bucket-scoped key for a fresh upload.
func storageKey(projectID, bucketName, filename string) string {
	name := uuid.NewString()
	if ext := fileExt(filename); ext != "" {
		name += "." + ext
	}
	return projectID + "/" + bucketName + "/" + name
}

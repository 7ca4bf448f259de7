package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/imaging"
	"github.com/noah-isme/lostfound-api/pkg/jobs"
)

// PhotoKind selects the storage subdirectory of an upload.
type PhotoKind string

const (
	PhotoKindItem    PhotoKind = "items"
	PhotoKindProfile PhotoKind = "profiles"
)

// JobTypePhotoDelete identifies cleanup jobs on the photo queue.
const JobTypePhotoDelete = "photo.delete"

type photoStorage interface {
	Save(sub, ext string, data []byte) (string, error)
	Delete(ref string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type photoObserver interface {
	ObservePhotoCleanup(success bool)
}

// PhotoService normalises uploads, stores them and removes replaced photos in the background.
type PhotoService struct {
	storage  photoStorage
	queue    jobEnqueuer
	metrics  photoObserver
	maxBytes int64
	logger   *zap.Logger
}

// NewPhotoService constructs a PhotoService. Removal runs inline until UseQueue is called.
func NewPhotoService(storage photoStorage, maxBytes int64, metrics photoObserver, logger *zap.Logger) *PhotoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &PhotoService{storage: storage, metrics: metrics, maxBytes: maxBytes, logger: logger}
}

// UseQueue routes removals through the background cleanup queue.
func (s *PhotoService) UseQueue(queue jobEnqueuer) {
	s.queue = queue
}

// MaxBytes is the largest accepted upload.
func (s *PhotoService) MaxBytes() int64 {
	return s.maxBytes
}

// Save validates and stores an uploaded image, returning its public reference.
// field names the form field in validation errors.
func (s *PhotoService) Save(kind PhotoKind, field string, header *multipart.FileHeader) (string, error) {
	if header == nil {
		return "", appErrors.Field(field, "no file was uploaded")
	}
	if header.Size > s.maxBytes {
		return "", appErrors.Field(field, fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}

	file, err := header.Open()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	defer file.Close() //nolint:errcheck

	photo, err := imaging.Normalize(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			return "", appErrors.Field(field, "only JPEG, PNG or GIF images are accepted")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to process image")
	}

	ref, err := s.storage.Save(string(kind), ".jpg", photo.Data)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}
	return ref, nil
}

// Remove deletes a stored photo best effort. It never fails the caller.
func (s *PhotoService) Remove(ctx context.Context, ref *string) {
	if ref == nil || *ref == "" {
		return
	}
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{ID: *ref, Type: JobTypePhotoDelete, Payload: *ref})
		if err == nil {
			return
		}
		s.logger.Warn("photo cleanup queue unavailable, deleting inline", zap.String("photo", *ref), zap.Error(err))
	}
	if err := s.HandleCleanup(ctx, jobs.Job{Type: JobTypePhotoDelete, Payload: *ref}); err != nil {
		s.logger.Warn("failed to delete photo", zap.String("photo", *ref), zap.Error(err))
	}
}

// HandleCleanup is the queue handler for photo removal jobs.
func (s *PhotoService) HandleCleanup(_ context.Context, job jobs.Job) error {
	if job.Type != JobTypePhotoDelete {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}
	err := s.storage.Delete(job.Payload)
	s.metrics.ObservePhotoCleanup(err == nil)
	return err
}

// Abandoned logs a cleanup job that ran out of retries.
func (s *PhotoService) Abandoned(job jobs.Job, err error) {
	s.logger.Error("photo left on disk after retries", zap.String("photo", job.Payload), zap.Int("attempts", job.Attempt), zap.Error(err))
}

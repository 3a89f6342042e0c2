package services

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/inkwell-press/apiserver/internal/storage"
	"github.com/inkwell-press/apiserver/internal/store"
	"github.com/inkwell-press/apiserver/types"
)

// AttachmentRepository defines persistence operations for attachments.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error)
	GetByID(ctx context.Context, id string) (types.Attachment, error)
	ListByPost(ctx context.Context, postID int) ([]types.Attachment, error)
	Delete(ctx context.Context, id string) error
}

// AttachmentService stores attachment files in object storage and their
// metadata in the attachment repository.
type AttachmentService struct {
	repo    AttachmentRepository
	posts   PostRepository
	storage *storage.Storage
	logger  *slog.Logger
}

func NewAttachmentService(repo AttachmentRepository, posts PostRepository, st *storage.Storage, logger *slog.Logger) *AttachmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttachmentService{
		repo:    repo,
		posts:   posts,
		storage: st,
		logger:  logger,
	}
}

// Add uploads the file under a fresh object key and records the
// attachment against the post. The post must exist.
func (s *AttachmentService) Add(ctx context.Context, postID int, fileName, contentType string, r io.Reader, size int64) (types.Attachment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return types.Attachment{}, err
	}

	key := storage.AttachmentKey(postID, fileName)
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.Attachment{}, err
	}

	attachment, err := s.repo.Create(ctx, types.Attachment{
		ID:          uuid.NewString(),
		PostID:      postID,
		ObjectKey:   key,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
	})
	if err != nil {
		// Roll the upload back so the bucket does not accumulate
		// orphaned objects.
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Error("orphaned attachment object", "object_key", key, "error", delErr)
		}
		return types.Attachment{}, err
	}

	return attachment, nil
}

// Open returns the attachment metadata and a reader over its stored
// bytes. The caller closes the reader.
func (s *AttachmentService) Open(ctx context.Context, postID int, attachmentID string) (types.Attachment, io.ReadCloser, error) {
	attachment, err := s.repo.GetByID(ctx, attachmentID)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	if attachment.PostID != postID {
		return types.Attachment{}, nil, store.ErrNotFound
	}

	r, err := s.storage.Get(ctx, attachment.ObjectKey)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	return attachment, r, nil
}

// List returns the attachments of a post. The post must exist.
func (s *AttachmentService) List(ctx context.Context, postID int) ([]types.Attachment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.repo.ListByPost(ctx, postID)
}

// Remove deletes an attachment. The stored object is removed best
// effort: a storage failure is logged and the metadata row still goes.
func (s *AttachmentService) Remove(ctx context.Context, postID int, attachmentID string) error {
	attachment, err := s.repo.GetByID(ctx, attachmentID)
	if err != nil {
		return err
	}
	if attachment.PostID != postID {
		return store.ErrNotFound
	}

	if err := s.storage.Delete(ctx, attachment.ObjectKey); err != nil {
		s.logger.Error("delete attachment object failed", "object_key", attachment.ObjectKey, "error", err)
	}

	return s.repo.Delete(ctx, attachmentID)
}

package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/inkwell-press/apiserver/internal/events"
	"github.com/inkwell-press/apiserver/internal/store"
	"github.com/inkwell-press/apiserver/types"
)

// ErrAuthorNotFound is returned by CreateDraft when the author email
// does not resolve to a user.
var ErrAuthorNotFound = errors.New("author not found")

const (
	defaultTake = 20
	maxTake     = 100
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context, filter store.PostFilter) ([]types.Post, int, error)
	GetByID(ctx context.Context, id int) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id int) error
}

// PostPatch is a partial update. A nil field means "leave unchanged",
// which keeps it distinct from an explicit empty string.
type PostPatch struct {
	Title   *string
	Content *string
}

// PostService encapsulates the post lifecycle: draft creation, reads,
// partial updates, one-way publishing and deletion.
//
// Mutating operations read the post before writing, trading one extra
// query for a uniform not-found contract. That check is not atomic
// against a concurrent delete; if the row vanishes in between, the write
// itself reports store.ErrNotFound and the request fails cleanly.
type PostService struct {
	repo      PostRepository
	users     UserRepository
	publisher *events.Publisher
	logger    *slog.Logger
}

func NewPostService(repo PostRepository, users UserRepository, publisher *events.Publisher, logger *slog.Logger) *PostService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{
		repo:      repo,
		users:     users,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateDraft resolves authorEmail to a user and creates an unpublished
// post owned by that user.
func (s *PostService) CreateDraft(ctx context.Context, title, content, authorEmail string) (types.Post, error) {
	author, err := s.users.GetByEmail(ctx, authorEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, ErrAuthorNotFound
		}
		return types.Post{}, err
	}

	return s.repo.Create(ctx, types.Post{
		Title:     title,
		Content:   content,
		Published: false,
		AuthorID:  author.ID,
	})
}

func (s *PostService) Get(ctx context.Context, id int) (types.Post, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a filtered page of posts plus the total match count.
// The filter is clamped before use and returned so callers can echo the
// applied pagination: negative skip becomes 0, take defaults to 20 and
// is capped at 100.
func (s *PostService) List(ctx context.Context, filter store.PostFilter) ([]types.Post, int, store.PostFilter, error) {
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Take <= 0 {
		filter.Take = defaultTake
	}
	if filter.Take > maxTake {
		filter.Take = maxTake
	}

	items, total, err := s.repo.List(ctx, filter)
	return items, total, filter, err
}

// Update applies the supplied patch fields, leaving the rest untouched.
func (s *PostService) Update(ctx context.Context, id int, patch PostPatch) (types.Post, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Post{}, err
	}

	if patch.Title != nil {
		post.Title = *patch.Title
	}
	if patch.Content != nil {
		post.Content = *patch.Content
	}

	return s.repo.Update(ctx, post)
}

// Publish marks the post as published. Publishing an already-published
// post is a no-op success; only a missing id is an error.
func (s *PostService) Publish(ctx context.Context, id int) (types.Post, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Post{}, err
	}

	if post.Published {
		return post, nil
	}

	post.Published = true
	published, err := s.repo.Update(ctx, post)
	if err != nil {
		return types.Post{}, err
	}

	s.emit(ctx, events.PostPublished, published)
	return published, nil
}

// Delete removes the post permanently.
func (s *PostService) Delete(ctx context.Context, id int) (types.Post, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Post{}, err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return types.Post{}, err
	}

	s.emit(ctx, events.PostDeleted, post)
	return post, nil
}

func (s *PostService) emit(ctx context.Context, name string, post types.Post) {
	if s.publisher == nil {
		return
	}
	event := events.PostEvent{
		Event:      name,
		PostID:     post.ID,
		AuthorID:   post.AuthorID,
		Title:      post.Title,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.PublishPostEvent(ctx, event); err != nil {
		s.logger.Error("publish post event failed", "event", name, "post_id", post.ID, "error", err)
	}
}

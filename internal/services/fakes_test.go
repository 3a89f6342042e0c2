package services

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/inkwell-press/apiserver/internal/store"
	"github.com/inkwell-press/apiserver/types"
)

// In-memory repository fakes backing the service tests.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = f.nextID
	f.nextID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

type fakePostRepo struct {
	mu         sync.Mutex
	nextID     int
	posts      map[int]types.Post
	lastFilter store.PostFilter
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{nextID: 1, posts: map[int]types.Post{}}
}

func (f *fakePostRepo) Create(ctx context.Context, post types.Post) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post.ID = f.nextID
	f.nextID++
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	f.posts[post.ID] = post
	return post, nil
}

func (f *fakePostRepo) GetByID(ctx context.Context, id int) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (f *fakePostRepo) List(ctx context.Context, filter store.PostFilter) ([]types.Post, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	matched := make([]types.Post, 0, len(f.posts))
	for _, post := range f.posts {
		if filter.Search == "" ||
			strings.Contains(post.Title, filter.Search) ||
			strings.Contains(post.Content, filter.Search) {
			matched = append(matched, post)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if filter.Skip >= len(matched) {
		return []types.Post{}, total, nil
	}
	matched = matched[filter.Skip:]
	if filter.Take < len(matched) {
		matched = matched[:filter.Take]
	}
	return matched, total, nil
}

func (f *fakePostRepo) Update(ctx context.Context, post types.Post) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[post.ID]; !ok {
		return types.Post{}, store.ErrNotFound
	}
	post.UpdatedAt = time.Now()
	f.posts[post.ID] = post
	return post, nil
}

func (f *fakePostRepo) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.posts, id)
	return nil
}

type fakeAttachmentRepo struct {
	mu          sync.Mutex
	attachments map[string]types.Attachment
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{attachments: map[string]types.Attachment{}}
}

func (f *fakeAttachmentRepo) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attachment.CreatedAt = time.Now()
	f.attachments[attachment.ID] = attachment
	return attachment, nil
}

func (f *fakeAttachmentRepo) GetByID(ctx context.Context, id string) (types.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attachment, ok := f.attachments[id]
	if !ok {
		return types.Attachment{}, store.ErrNotFound
	}
	return attachment, nil
}

func (f *fakeAttachmentRepo) ListByPost(ctx context.Context, postID int) ([]types.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attachments := make([]types.Attachment, 0)
	for _, attachment := range f.attachments {
		if attachment.PostID == postID {
			attachments = append(attachments, attachment)
		}
	}
	return attachments, nil
}

func (f *fakeAttachmentRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attachments[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.attachments, id)
	return nil
}

// recordingBackend captures events handed to the publisher.
type recordingBackend struct {
	mu        sync.Mutex
	published [][]byte
}

func (b *recordingBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, data)
	return "msg-id", nil
}

func (b *recordingBackend) Close() error { return nil }

func (b *recordingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

// fakeObjectStorage keeps uploaded objects in memory.
type fakeObjectStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: map[string][]byte{}}
}

func (f *fakeObjectStorage) EnsureBucket(ctx context.Context) error { return nil }

func (f *fakeObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (f *fakeObjectStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStorage) Close() error { return nil }

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/inkwell-press/apiserver/internal/auth"
	"github.com/inkwell-press/apiserver/internal/services"
	"github.com/inkwell-press/apiserver/internal/storage"
	"github.com/inkwell-press/apiserver/internal/store"
	"github.com/inkwell-press/apiserver/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

// memUserRepo is an in-memory services.UserRepository.
type memUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: make(map[int]types.User)}
}

func (m *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.nextID++
	m.users[user.ID] = user
	return user, nil
}

// memPostRepo is an in-memory services.PostRepository with the same
// filter semantics as the SQL store: substring match on title or
// content, results ordered by id.
type memPostRepo struct {
	nextID int
	posts  map[int]types.Post
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{nextID: 1, posts: make(map[int]types.Post)}
}

func (m *memPostRepo) List(_ context.Context, filter store.PostFilter) ([]types.Post, int, error) {
	matched := make([]types.Post, 0)
	for _, post := range m.posts {
		if filter.Search != "" &&
			!strings.Contains(post.Title, filter.Search) &&
			!strings.Contains(post.Content, filter.Search) {
			continue
		}
		matched = append(matched, post)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if filter.Skip >= total {
		return []types.Post{}, total, nil
	}
	matched = matched[filter.Skip:]
	if filter.Take < len(matched) {
		matched = matched[:filter.Take]
	}
	return matched, total, nil
}

func (m *memPostRepo) GetByID(_ context.Context, id int) (types.Post, error) {
	post, ok := m.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (m *memPostRepo) Create(_ context.Context, post types.Post) (types.Post, error) {
	post.ID = m.nextID
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	m.nextID++
	m.posts[post.ID] = post
	return post, nil
}

func (m *memPostRepo) Update(_ context.Context, post types.Post) (types.Post, error) {
	if _, ok := m.posts[post.ID]; !ok {
		return types.Post{}, store.ErrNotFound
	}
	post.UpdatedAt = time.Now()
	m.posts[post.ID] = post
	return post, nil
}

func (m *memPostRepo) Delete(_ context.Context, id int) error {
	if _, ok := m.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

// memAttachmentRepo is an in-memory services.AttachmentRepository.
type memAttachmentRepo struct {
	attachments map[string]types.Attachment
}

func newMemAttachmentRepo() *memAttachmentRepo {
	return &memAttachmentRepo{attachments: make(map[string]types.Attachment)}
}

func (m *memAttachmentRepo) Create(_ context.Context, attachment types.Attachment) (types.Attachment, error) {
	attachment.CreatedAt = time.Now()
	m.attachments[attachment.ID] = attachment
	return attachment, nil
}

func (m *memAttachmentRepo) GetByID(_ context.Context, id string) (types.Attachment, error) {
	attachment, ok := m.attachments[id]
	if !ok {
		return types.Attachment{}, store.ErrNotFound
	}
	return attachment, nil
}

func (m *memAttachmentRepo) ListByPost(_ context.Context, postID int) ([]types.Attachment, error) {
	attachments := make([]types.Attachment, 0)
	for _, attachment := range m.attachments {
		if attachment.PostID == postID {
			attachments = append(attachments, attachment)
		}
	}
	return attachments, nil
}

func (m *memAttachmentRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.attachments[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.attachments, id)
	return nil
}

// memObjectStorage keeps uploaded objects in memory.
type memObjectStorage struct {
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (m *memObjectStorage) EnsureBucket(_ context.Context) error { return nil }

func (m *memObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjectStorage) Close() error { return nil }

// testAPI wires the real routers over in-memory repositories, mirroring
// the server's mount layout.
type testAPI struct {
	router  chi.Router
	users   *memUserRepo
	posts   *memPostRepo
	objects *memObjectStorage
	tokens  *auth.TokenService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	userRepo := newMemUserRepo()
	postRepo := newMemPostRepo()
	attachmentRepo := newMemAttachmentRepo()
	objects := newMemObjectStorage()

	tokens := auth.NewTokenService(testSecret, time.Hour)
	userService := services.NewUserService(userRepo)
	postService := services.NewPostService(postRepo, userRepo, nil, nil)
	attachmentService := services.NewAttachmentService(attachmentRepo, postRepo, storage.NewStorage(objects), nil)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		AuthRouter(r, userService, tokens, nil)
	})
	r.Route("/post", func(r chi.Router) {
		PostRouter(r, postService, attachmentService, 0, RequireAuth(tokens, userService), nil)
	})

	return &testAPI{router: r, users: userRepo, posts: postRepo, objects: objects, tokens: tokens}
}

func (api *testAPI) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

// doUpload posts a multipart body with a single file field.
func (api *testAPI) doUpload(t *testing.T, target, token, fileName, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func (api *testAPI) register(t *testing.T, name, email, password string) types.User {
	t.Helper()
	rec := api.do(t, http.MethodPost, "/register", "", RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var user types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	return user
}

func (api *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := api.do(t, http.MethodPost, "/login", "", LoginRequest{
		Email:    email,
		Password: password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func decodePost(t *testing.T, rec *httptest.ResponseRecorder) types.Post {
	t.Helper()
	var post types.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	return post
}

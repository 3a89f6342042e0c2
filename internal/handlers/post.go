package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/inkwell-press/apiserver/internal/services"
	"github.com/inkwell-press/apiserver/internal/store"
	"github.com/inkwell-press/apiserver/types"
)

const (
	defaultUploadLimit = 10 << 20
	formFieldFile      = "file"
)

// PostHandler provides HTTP handlers for the post lifecycle.
type PostHandler struct {
	posts       *services.PostService
	attachments *services.AttachmentService
	validate    *validator.Validate
	uploadLimit int64
	logger      *slog.Logger
}

// NewPostHandler constructs a handler with the provided services.
// attachments may be nil when no object storage is configured.
func NewPostHandler(posts *services.PostService, attachments *services.AttachmentService, uploadLimit int64, logger *slog.Logger) *PostHandler {
	if uploadLimit <= 0 {
		uploadLimit = defaultUploadLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostHandler{
		posts:       posts,
		attachments: attachments,
		validate:    validator.New(),
		uploadLimit: uploadLimit,
		logger:      logger,
	}
}

// PostRouter registers post routes on the given router. Every route sits
// behind the auth middleware.
func PostRouter(
	r chi.Router,
	posts *services.PostService,
	attachments *services.AttachmentService,
	uploadLimit int64,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewPostHandler(posts, attachments, uploadLimit, logger)

	r.Use(authMiddleware)
	r.Post("/", handler.CreatePost)
	r.Get("/", handler.ListPosts)
	r.Put("/publish/{postID}", handler.PublishPost)
	r.Route("/{postID}", func(r chi.Router) {
		r.Get("/", handler.GetPost)
		r.Put("/", handler.UpdatePost)
		r.Delete("/", handler.DeletePost)
		if handler.attachments != nil {
			r.Post("/attachments", handler.UploadAttachment)
			r.Get("/attachments", handler.ListAttachments)
			r.Get("/attachments/{attachmentID}", handler.DownloadAttachment)
			r.Delete("/attachments/{attachmentID}", handler.DeleteAttachment)
		}
	})
}

// CreatePost creates a draft owned by the user named in authorEmail.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "missing or malformed fields")
		return
	}

	post, err := h.posts.CreateDraft(r.Context(), req.Title, req.Content, req.AuthorEmail)
	if err != nil {
		if errors.Is(err, services.ErrAuthorNotFound) {
			writeError(w, http.StatusNotFound, "author not found")
			return
		}
		internalError(w, h.logger, "failed to create post", err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		internalError(w, h.logger, "failed to fetch post", err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, applied, err := h.posts.List(r.Context(), filter)
	if err != nil {
		internalError(w, h.logger, "failed to list posts", err)
		return
	}

	writeJSON(w, http.StatusOK, PostListResponse{
		Items: items,
		Skip:  applied.Skip,
		Take:  applied.Take,
		Total: total,
	})
}

// UpdatePost applies a partial update; absent body fields stay unchanged.
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	post, err := h.posts.Update(r.Context(), id, services.PostPatch{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		internalError(w, h.logger, "failed to update post", err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) PublishPost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.posts.Publish(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		internalError(w, h.logger, "failed to publish post", err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// DeletePost removes the post and returns it as deletion confirmation.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.posts.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		internalError(w, h.logger, "failed to delete post", err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(h.uploadLimit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.uploadLimit {
		writeError(w, http.StatusBadRequest, "uploaded file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}

	attachment, err := h.attachments.Add(r.Context(), id, header.Filename, contentType, file, header.Size)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		internalError(w, h.logger, "failed to store attachment", err)
		return
	}

	writeJSON(w, http.StatusCreated, attachment)
}

func (h *PostHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachments, err := h.attachments.List(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		internalError(w, h.logger, "failed to list attachments", err)
		return
	}

	writeJSON(w, http.StatusOK, attachments)
}

// DownloadAttachment streams the stored object back with its recorded
// content type.
func (h *PostHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachmentID := chi.URLParam(r, "attachmentID")
	if strings.TrimSpace(attachmentID) == "" {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	attachment, object, err := h.attachments.Open(r.Context(), id, attachmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "attachment not found")
			return
		}
		internalError(w, h.logger, "failed to fetch attachment", err)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	if attachment.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(attachment.Size, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", attachment.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, object); err != nil {
		h.logger.Error("failed to stream attachment", "attachment_id", attachment.ID, "error", err)
	}
}

func (h *PostHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachmentID := chi.URLParam(r, "attachmentID")
	if strings.TrimSpace(attachmentID) == "" {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	if err := h.attachments.Remove(r.Context(), id, attachmentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "attachment not found")
			return
		}
		internalError(w, h.logger, "failed to delete attachment", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreatePostRequest is the draft creation payload.
type CreatePostRequest struct {
	Title       string `json:"title" validate:"required"`
	Content     string `json:"content" validate:"required"`
	AuthorEmail string `json:"authorEmail" validate:"required,email"`
}

// UpdatePostRequest is a partial update. Pointer fields distinguish
// "absent" from an explicit empty value.
type UpdatePostRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// PostListResponse is the paginated list response payload.
type PostListResponse struct {
	Items []types.Post `json:"items"`
	Skip  int          `json:"skip"`
	Take  int          `json:"take"`
	Total int          `json:"total"`
}

func parsePostID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "postID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid post id")
	}
	return id, nil
}

func parseListQuery(r *http.Request) (store.PostFilter, error) {
	filter := store.PostFilter{Search: r.URL.Query().Get("searchString")}

	if raw := strings.TrimSpace(r.URL.Query().Get("skip")); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return store.PostFilter{}, errors.New("invalid skip")
		}
		filter.Skip = skip
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("take")); raw != "" {
		take, err := strconv.Atoi(raw)
		if err != nil || take < 1 {
			return store.PostFilter{}, errors.New("invalid take")
		}
		filter.Take = take
	}

	return filter, nil
}

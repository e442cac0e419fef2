package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"shokucho.jp/portal/internal/apperr"
)

// maxForumBody bounds the JSON body of forum posts.
const maxForumBody = 1 << 20

// Length limits are configured, so they are enforced by the forum service.
type PostArticleRequest struct {
	Title string `json:"title"`
	Body  string `json:"body" validate:"required"`
	Tags  string `json:"tags"` // Raw, comma separated
}

type PostCommentRequest struct {
	Body string `json:"body" validate:"required"`
}

func (h *APIHandler) ListArticlesHandler(w http.ResponseWriter, r *http.Request) {
	articles, err := h.forumService.ListArticles(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, articles, h.logger)
}

func (h *APIHandler) PostArticleHandler(w http.ResponseWriter, r *http.Request) {
	var req PostArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	article, err := h.forumService.PostArticle(r.Context(), req.Title, req.Body, req.Tags)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, article, h.logger)
}

func (h *APIHandler) GetArticleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	detail, err := h.forumService.GetArticle(r.Context(), id)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, detail, h.logger)
}

func (h *APIHandler) PostCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	var req PostCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	comment, err := h.forumService.PostComment(r.Context(), id, req.Body)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, comment, h.logger)
}

func articleID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "articleID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NotFoundf("article %q not found", raw)
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxForumBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(err, apperr.CodeValidation, "invalid request body")
	}
	return nil
}

package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pressline.org/internal/audit"
	"pressline.org/internal/content"
)

type createPostRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published *bool  `json:"published"`
}

type updatePostRequest struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Published *bool   `json:"published"`
}

func (a *API) handlePostsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if a.requirePermission(w, r, "posts", "read") == nil {
			return
		}
		limit, offset, err := parsePage(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		posts, err := a.posts.List(r.Context(), limit, offset)
		if err != nil {
			handlePostError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": posts})
	case http.MethodPost:
		actor := a.requirePermission(w, r, "posts", "create")
		if actor == nil {
			return
		}
		var req createPostRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		post, err := a.posts.Create(r.Context(), actor, content.CreateInput{
			Title:     req.Title,
			Content:   req.Content,
			Published: req.Published,
		})
		if err != nil {
			handlePostError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "posts.create", map[string]any{"post_id": post.ID})
		w.Header().Set("Location", fmt.Sprintf("/v1/posts/%d", post.ID))
		writeJSON(w, http.StatusCreated, post)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePostResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/posts/"), "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	postID, err := parseID(path)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if a.requirePermission(w, r, "posts", "read") == nil {
			return
		}
		post, err := a.posts.Get(r.Context(), postID)
		if err != nil {
			handlePostError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	case http.MethodPut, http.MethodPatch:
		actor := a.requirePermission(w, r, "posts", "update")
		if actor == nil {
			return
		}
		var req updatePostRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		post, err := a.posts.Update(r.Context(), actor, postID, content.UpdateInput{
			Title:     req.Title,
			Content:   req.Content,
			Published: req.Published,
		})
		if err != nil {
			handlePostError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "posts.update", map[string]any{"post_id": postID})
		writeJSON(w, http.StatusOK, post)
	case http.MethodDelete:
		actor := a.requirePermission(w, r, "posts", "delete")
		if actor == nil {
			return
		}
		if err := a.posts.Delete(r.Context(), actor, postID); err != nil {
			handlePostError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "posts.delete", map[string]any{"post_id": postID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

func handlePostError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, content.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, content.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, content.ErrForbidden):
		writeError(w, r, http.StatusForbidden, msgForbidden)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

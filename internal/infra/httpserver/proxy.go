package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/estate-chat/internal/infra/backend"
	"github.com/bryanwahyu/estate-chat/internal/middleware"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

// POST /api/upload
// Multipart form with "file" and "session_id", relayed unchanged.
func (r *Router) handleUploadProxy(w http.ResponseWriter, req *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "File too large"})
		}
		return writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to read upload"})
	}
	relay, err := r.backend.Forward(req.Context(), backend.ForwardRequest{
		Method:      http.MethodPost,
		Path:        backend.PathUpload,
		Body:        bytes.NewReader(body),
		ContentType: req.Header.Get("Content-Type"),
	})
	return r.relay(w, req, relay, err, "Failed to upload file")
}

// POST /api/chatbot
// Body: {"message": "...", "session_id": "..."}
func (r *Router) handleChatProxy(w http.ResponseWriter, req *http.Request) error {
	return r.forwardPost(backend.PathChat, "Failed to get response from chatbot")(w, req)
}

// GET /api/uploads/{id}/preview
func (r *Router) handlePreviewProxy(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateUploadID(id); err != nil {
		return writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	relay, err := r.backend.Forward(req.Context(), backend.ForwardRequest{
		Method: http.MethodGet,
		Path:   backend.PreviewPath(id),
	})
	return r.relay(w, req, relay, err, "Failed to load preview")
}

// GET /api/filtered/{id}/download.csv|xlsx
// The file is passed through as bytes; only error answers must be JSON.
func (r *Router) forwardDownload(pathFor func(string) string) handlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		id := chi.URLParam(req, "id")
		if err := middleware.ValidateUploadID(id); err != nil {
			return writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		}
		relay, err := r.backend.Forward(req.Context(), backend.ForwardRequest{
			Method: http.MethodGet,
			Path:   pathFor(id),
		})
		if err != nil || relay.Status < 200 || relay.Status > 299 {
			return r.relay(w, req, relay, err, "Failed to download file")
		}

		if relay.ContentType != "" {
			w.Header().Set("Content-Type", relay.ContentType)
		}
		if relay.Disposition != "" {
			w.Header().Set("Content-Disposition", relay.Disposition)
		}
		w.WriteHeader(relay.Status)
		r.write(w, req, relay.Body)
		return nil
	}
}

// forwardGet relays a GET, passing on only the named query parameters.
func (r *Router) forwardGet(path, failMsg string, params ...string) handlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		q := url.Values{}
		for _, p := range params {
			if v := req.URL.Query().Get(p); v != "" {
				q.Set(p, v)
			}
		}
		if sid := q.Get("session_id"); sid != "" {
			if err := middleware.ValidateSessionID(sid); err != nil {
				return writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			}
		}
		relay, err := r.backend.Forward(req.Context(), backend.ForwardRequest{
			Method: http.MethodGet,
			Path:   path,
			Query:  q,
		})
		return r.relay(w, req, relay, err, failMsg)
	}
}

// forwardPost relays a JSON body as-is.
func (r *Router) forwardPost(path, failMsg string) handlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxJSONBody))
		if err != nil {
			return writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Request body too large"})
		}
		if !json.Valid(body) {
			return writeJSON(w, http.StatusBadRequest, errorBody{Error: "Request body must be JSON"})
		}
		relay, err := r.backend.Forward(req.Context(), backend.ForwardRequest{
			Method:      http.MethodPost,
			Path:        path,
			Body:        bytes.NewReader(body),
			ContentType: "application/json",
		})
		return r.relay(w, req, relay, err, failMsg)
	}
}

// relay writes the backend's status and JSON body back. A network failure or
// a body that is not JSON becomes a generic error.
func (r *Router) relay(w http.ResponseWriter, req *http.Request, relay *backend.Relay, err error, failMsg string) error {
	if err != nil {
		middleware.IncrementProxyFailed()
		r.logger.Error("proxy request failed", "path", req.URL.Path, "err", err)
		return writeJSON(w, http.StatusInternalServerError, errorBody{Error: failMsg})
	}
	if len(relay.Body) == 0 {
		w.WriteHeader(relay.Status)
		return nil
	}
	if !json.Valid(relay.Body) {
		middleware.IncrementProxyFailed()
		r.logger.Error("backend returned malformed json", "path", req.URL.Path, "status", relay.Status)
		status := relay.Status
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		return writeJSON(w, status, errorBody{Error: failMsg})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(relay.Status)
	r.write(w, req, relay.Body)
	return nil
}

// write sends a relayed body once the status is out. Errors can only be
// logged at that point.
func (r *Router) write(w http.ResponseWriter, req *http.Request, body []byte) {
	if _, err := w.Write(body); err != nil {
		r.logger.Warn("write relayed body", "path", req.URL.Path, "err", err)
	}
}

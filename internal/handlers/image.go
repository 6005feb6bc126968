package handlers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/recipebook/apiserver/internal/storage"
)

// ImageHandler streams stored recipe images.
type ImageHandler struct {
	images *storage.Storage
}

// ImageRouter registers the image route on the given router.
// images may be nil when no storage backend is configured.
func ImageRouter(r chi.Router, images *storage.Storage) {
	handler := &ImageHandler{images: images}
	r.Get("/{imageKey}", handler.GetImage)
}

func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}

	key := strings.TrimSpace(chi.URLParam(r, "imageKey"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "invalid image key")
		return
	}

	object, err := h.images.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	defer object.Close()

	if contentType := mime.TypeByExtension(filepath.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if _, err := io.Copy(w, object); err != nil {
		// Response already started; nothing sensible left to send.
		return
	}
}

package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/contacts/internal/avatar"
)

// AvatarHandler stores uploaded avatar images and serves them back. The URL
// returned by Upload is meant to be saved in a contact's avatar field.
type AvatarHandler struct {
	dir string
}

// NewAvatarHandler creates a handler rooted at dir.
func NewAvatarHandler(dir string) *AvatarHandler {
	return &AvatarHandler{dir: dir}
}

// safeName validates that name is a plain file name and returns its
// absolute path under the avatars directory.
func (h *AvatarHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(h.dir, cleaned)
	if !strings.HasPrefix(abs, filepath.Clean(h.dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes avatars directory")
	}
	return abs, nil
}

// ServeFile handles GET /avatars/{filename}.
func (h *AvatarHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.safeName(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	// Avatars are images only; never let one run script on this origin.
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/avatars (multipart/form-data, field "file").
// The stored file gets a random name that keeps the original extension.
func (h *AvatarHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, avatar.MaxSize+maxBodyBytes)

	if err := r.ParseMultipartForm(avatar.MaxSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid multipart")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' field in multipart form")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !avatar.Allowed(ext) {
		writeError(w, http.StatusBadRequest, "unsupported image type: "+ext)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, avatar.MaxSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) > avatar.MaxSize {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}
	if err := avatar.Validate(data, ext); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := uuid.NewString() + ext
	abs, err := h.safeName(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create avatars dir")
		return
	}

	if err := os.WriteFile(abs, data, 0o644); err != nil {
		_ = os.Remove(abs)
		writeError(w, http.StatusInternalServerError, "failed to write file")
		return
	}

	writeJSON(w, http.StatusCreated, AvatarUploadResponse{
		Filename: name,
		Size:     int64(len(data)),
		URL:      "/avatars/" + name,
	})
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/relife-project/technical-service/internal/auth"
	"github.com/relife-project/technical-service/internal/events"
	"github.com/relife-project/technical-service/internal/storage"
)

const maxUploadBytes = 50 << 20

type StorageHandler struct {
	storage storage.Client
	events  events.Publisher
	logger  *slog.Logger
}

func NewStorageHandler(s storage.Client, p events.Publisher, logger *slog.Logger) *StorageHandler {
	return &StorageHandler{storage: s, events: p, logger: logger}
}

// supabaseIdentity returns the caller when their token can be forwarded to
// Supabase; tokens verified directly against Keycloak cannot.
func supabaseIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}
	if !id.SupabaseCompatible() {
		writeError(w, http.StatusBadRequest,
			"direct Keycloak tokens cannot be used with Supabase row-level security; sign in through Supabase")
		return nil, false
	}
	return id, true
}

type UploadResponse struct {
	Message   string `json:"message"`
	Path      string `json:"path"`
	PublicURL string `json:"public_url"`
}

// Upload stores a multipart "file" under the caller's folder.
// POST /storage
func (h *StorageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}
	id, ok := supabaseIdentity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" required")
		return
	}
	defer file.Close()

	name := path.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	objectPath := id.UserID + "/" + name

	key, err := h.storage.Upload(r.Context(), id.Token, objectPath, header.Header.Get("Content-Type"), file)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("upload failed", "user_id", id.UserID, "path", objectPath, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to upload file: "+err.Error())
		return
	}
	h.logger.Info("file uploaded", "user_id", id.UserID, "key", key, "size", header.Size)

	if h.events != nil {
		ev := events.StorageUploadedEvent{UserID: id.UserID, Path: objectPath, Size: header.Size, Timestamp: time.Now().UTC()}
		if err := h.events.Publish(events.SubjectStorageUploaded, ev); err != nil {
			h.logger.Warn("failed to publish event", "subject", events.SubjectStorageUploaded, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Message:   "File uploaded successfully",
		Path:      objectPath,
		PublicURL: h.storage.PublicURL(objectPath),
	})
}

type FileInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
	PublicURL string `json:"public_url"`
}

// List returns the caller's files.
// GET /storage
func (h *StorageHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}
	id, ok := supabaseIdentity(w, r)
	if !ok {
		return
	}
	objects, err := h.storage.List(r.Context(), id.Token, id.UserID)
	if err != nil {
		h.logger.Error("list failed", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list files: "+err.Error())
		return
	}
	files := make([]FileInfo, 0, len(objects))
	for _, o := range objects {
		files = append(files, FileInfo{
			Name:      o.Name,
			Size:      o.Metadata.Size,
			CreatedAt: o.CreatedAt,
			PublicURL: h.storage.PublicURL(id.UserID + "/" + o.Name),
		})
	}
	writeJSON(w, http.StatusOK, files)
}

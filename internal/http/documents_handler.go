package httpapi

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"immobili-data/internal/config"
	"immobili-data/internal/storage"
)

// DocumentsHandler serves the attachment sub-resources of a property:
// image (photo/floor plan) and contract (PDF).
type DocumentsHandler struct {
	store  *storage.DocumentStore
	cfg    config.StorageConfig
	logger *zap.Logger
}

func NewDocumentsHandler(store *storage.DocumentStore, cfg config.StorageConfig, logger *zap.Logger) *DocumentsHandler {
	return &DocumentsHandler{store: store, cfg: cfg, logger: logger}
}

// Dispatch routes /properties/{id}/image[...] and /properties/{id}/contract[...].
func (h *DocumentsHandler) Dispatch(w http.ResponseWriter, r *http.Request, id int64, parts []string) {
	var kind storage.BucketKind
	switch parts[0] {
	case "image":
		kind = storage.BucketImages
	case "contract":
		kind = storage.BucketContracts
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodPost:
			h.Upload(w, r, id, kind)
		case http.MethodDelete:
			h.Remove(w, r, id, kind)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "signed-url" && r.Method == http.MethodGet {
		h.SignedURL(w, r, id, kind)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// Upload reads the multipart file, enforces the image size/format limits at
// this boundary, and hands the bytes to the document store. A failure leaves
// the record's existing attachment columns unchanged.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request, id int64, kind storage.BucketKind) {
	maxBytes := int64(h.cfg.MaxImageSizeMB) << 20
	sizeDetail := "image exceeds size limit"
	if kind == storage.BucketContracts {
		maxBytes = int64(h.cfg.MaxContractSizeMB) << 20
		sizeDetail = "contract exceeds size limit"
	}
	if err := r.ParseMultipartForm(maxBytes + (1 << 20)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "failed to parse form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "file not found in request"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if kind == storage.BucketImages {
		if !h.imageFormatAllowed(ext) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "unsupported image format " + ext})
			return
		}
	} else if ext != ".pdf" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "contract must be a PDF"})
		return
	}
	if header.Size > maxBytes {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": sizeDetail})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "failed to read file"})
		return
	}
	// header.Size is client-reported; re-check what was actually read so an
	// over-limit file is rejected, never stored truncated.
	if int64(len(data)) > maxBytes {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": sizeDetail})
		return
	}

	makePublic := r.FormValue("public") != "false"
	res, err := h.store.UploadAndLink(r.Context(), id, data, header.Filename, kind, makePublic)
	if err != nil {
		writeError(w, h.logger, "Upload", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *DocumentsHandler) SignedURL(w http.ResponseWriter, r *http.Request, id int64, kind storage.BucketKind) {
	ttl := time.Duration(parseInt(r.URL.Query().Get("ttl"), 3600)) * time.Second

	url, err := h.store.SignedURL(r.Context(), id, kind, ttl)
	if err != nil {
		writeError(w, h.logger, "SignedURL", err)
		return
	}
	if url == "" {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "nessun documento"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (h *DocumentsHandler) Remove(w http.ResponseWriter, r *http.Request, id int64, kind storage.BucketKind) {
	ok, err := h.store.Remove(r.Context(), id, kind)
	if err != nil {
		writeError(w, h.logger, "Remove", err)
		return
	}
	if !ok {
		writeNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentsHandler) imageFormatAllowed(ext string) bool {
	for _, allowed := range h.cfg.ImageFormats {
		if ext == allowed {
			return true
		}
	}
	return false
}

package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"immobili-data/internal/repository"
)

// ExcelHandler serves the spreadsheet export and batch import endpoints.
type ExcelHandler struct {
	repo   repository.PropertiesRepo
	logger *zap.Logger
}

func NewExcelHandler(repo repository.PropertiesRepo, logger *zap.Logger) *ExcelHandler {
	return &ExcelHandler{repo: repo, logger: logger}
}

// Export streams the full record set as an xlsx attachment.
func (h *ExcelHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	items, err := h.repo.List(r.Context(), repository.PropertyFilters{})
	if err != nil {
		writeError(w, h.logger, "Export", err)
		return
	}

	data, err := GeneratePropertiesExport(items)
	if err != nil {
		h.logger.Error("excel export failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "export error"})
		return
	}

	filename := fmt.Sprintf("immobili_%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write excel response", zap.Error(err))
	}
}

// Import accepts an xlsx upload and creates one record per data row. Row
// failures do not abort the batch; they come back in the errors array.
func (h *ExcelHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "invalid multipart form"})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "file mancante"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "failed to read file"})
		return
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "file xlsx non valido"})
		return
	}
	defer f.Close()

	imported, rowErrs, err := ImportProperties(r.Context(), h.repo, f)
	if err != nil {
		h.logger.Error("excel import failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}

	h.logger.Info("excel import completed",
		zap.Int("imported", imported),
		zap.Int("errors", len(rowErrs)))
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": imported,
		"errors":   rowErrs,
	})
}

package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"immobili-data/internal/domain"
	"immobili-data/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes: validation 400,
// missing record 404, anything else a generic storage failure.
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	switch {
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
	case err == storage.ErrPropertyNotFound:
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "proprieta non trovata"})
	default:
		logger.Error(op+" failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "storage error"})
	}
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"detail": "proprieta non trovata"})
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseBool(s string) bool {
	return s == "true" || s == "1"
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

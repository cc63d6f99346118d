package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"immobili-data/internal/domain"
	"immobili-data/internal/repository"
)

// PropertiesHandler serves the record-store CRUD plus /stats. The logic is
// thin enough that handlers call the repository directly; there is no
// service layer.
type PropertiesHandler struct {
	repo       repository.PropertiesRepo
	expiryDays int // warning window for the expiring-contracts stat
	logger     *zap.Logger
}

func NewPropertiesHandler(repo repository.PropertiesRepo, expiryDays int, logger *zap.Logger) *PropertiesHandler {
	return &PropertiesHandler{repo: repo, expiryDays: expiryDays, logger: logger}
}

// List handles GET /properties. Store-level filters are conjunctive; the
// free-text search is applied here, after retrieval, across name, address
// and cadastral fields. skip/limit slice the final result.
func (h *PropertiesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := repository.PropertyFilters{
		RentedOnly:         parseBool(q.Get("rented")),
		UnpaidOnly:         parseBool(q.Get("unpaid")),
		ExpiringWithinDays: parseInt(q.Get("expiring_days"), 0),
		OrderBy:            q.Get("order_by"),
	}

	items, err := h.repo.List(r.Context(), filters)
	if err != nil {
		writeError(w, h.logger, "List", err)
		return
	}

	if search := q.Get("search"); search != "" {
		matched := items[:0]
		for _, p := range items {
			if p.MatchesSearch(search) {
				matched = append(matched, p)
			}
		}
		items = matched
	}

	skip := parseInt(q.Get("skip"), 0)
	limit := parseInt(q.Get("limit"), 100)
	if skip < 0 {
		skip = 0
	}
	if skip > len(items) {
		skip = len(items)
	}
	end := skip + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	items = items[skip:end]

	out := make([]any, 0, len(items))
	for _, p := range items {
		out = append(out, p.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PropertiesHandler) Get(w http.ResponseWriter, r *http.Request, id int64) {
	p, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "Get", err)
		return
	}
	if p == nil {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, p.ToJSON())
}

func (h *PropertiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload domain.PropertyCreate
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "invalid body"})
		return
	}

	id, err := h.repo.Create(r.Context(), &payload)
	if err != nil {
		writeError(w, h.logger, "Create", err)
		return
	}

	p, err := h.repo.Get(r.Context(), id)
	if err != nil || p == nil {
		writeError(w, h.logger, "Create readback", err)
		return
	}
	writeJSON(w, http.StatusCreated, p.ToJSON())
}

func (h *PropertiesHandler) Update(w http.ResponseWriter, r *http.Request, id int64) {
	var payload domain.PropertyUpdate
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "invalid body"})
		return
	}

	ok, err := h.repo.Update(r.Context(), id, &payload)
	if err != nil {
		writeError(w, h.logger, "Update", err)
		return
	}
	if !ok {
		writeNotFound(w)
		return
	}

	p, err := h.repo.Get(r.Context(), id)
	if err != nil || p == nil {
		writeError(w, h.logger, "Update readback", err)
		return
	}
	writeJSON(w, http.StatusOK, p.ToJSON())
}

func (h *PropertiesHandler) Delete(w http.ResponseWriter, r *http.Request, id int64) {
	ok, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "Delete", err)
		return
	}
	if !ok {
		writeNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /stats: portfolio-wide aggregates derived from the full
// record list.
func (h *PropertiesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.List(r.Context(), repository.PropertyFilters{})
	if err != nil {
		writeError(w, h.logger, "Stats", err)
		return
	}

	now := time.Now()
	var rented, expiring int
	var entrate, patrimonio float64
	for _, p := range items {
		patrimonio += p.TotalValue()
		if p.Rented() {
			rented++
			entrate += p.AffittoMensile
		}
		// already-expired contracts count too, same as contracts inside the window
		if days, ok := p.DaysToExpiry(now); ok && days <= h.expiryDays {
			expiring++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"totale_immobili":       len(items),
		"affitti_attivi":        rented,
		"entrate_mensili":       entrate,
		"valore_patrimonio":     patrimonio,
		"contratti_in_scadenza": expiring,
	})
}

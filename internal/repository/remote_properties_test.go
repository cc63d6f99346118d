package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immobili-data/internal/domain"
)

// tableStub fakes the hosted table API with just enough behavior for the
// adapter: GET with eq./neq. filters, POST returning the created row, PATCH
// and DELETE returning representations.
type tableStub struct {
	t    *testing.T
	rows []map[string]any
	// requests seen, by method
	patches []map[string]any
}

func (s *tableStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/proprieta" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			out := []map[string]any{}
			for _, row := range s.rows {
				if m := s.matches(r, row); m {
					out = append(out, row)
				}
			}
			writeStubJSON(w, http.StatusOK, out)
		case http.MethodPost:
			var row map[string]any
			require.NoError(s.t, json.NewDecoder(r.Body).Decode(&row))
			row["id"] = float64(len(s.rows) + 1)
			s.rows = append(s.rows, row)
			writeStubJSON(w, http.StatusCreated, []map[string]any{row})
		case http.MethodPatch:
			var patch map[string]any
			require.NoError(s.t, json.NewDecoder(r.Body).Decode(&patch))
			s.patches = append(s.patches, patch)
			writeStubJSON(w, http.StatusOK, []map[string]any{})
		case http.MethodDelete:
			out := []map[string]any{}
			kept := s.rows[:0]
			for _, row := range s.rows {
				if s.matches(r, row) {
					out = append(out, row)
					continue
				}
				kept = append(kept, row)
			}
			s.rows = kept
			writeStubJSON(w, http.StatusOK, out)
		}
	}
}

func (s *tableStub) matches(r *http.Request, row map[string]any) bool {
	q := r.URL.Query()
	if v := q.Get("id"); v != "" {
		idStr, _ := json.Marshal(row["id"])
		if v[:3] == "eq." && string(idStr) != v[3:] {
			return false
		}
		if len(v) > 4 && v[:4] == "neq." && string(idStr) == v[4:] {
			return false
		}
	}
	if v := q.Get("nome"); v != "" {
		if v[:3] == "eq." && row["nome"] != v[3:] {
			return false
		}
	}
	if q.Get("affittato_a") == "not.is.null" && row["affittato_a"] == nil {
		return false
	}
	if q.Get("mensilita_pagata") == "is.false" && row["mensilita_pagata"] == true {
		return false
	}
	return true
}

func writeStubJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newRemoteStub(t *testing.T) (*RemotePropertiesRepo, *tableStub) {
	stub := &tableStub{t: t}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return NewRemotePropertiesRepo(srv.URL, "test-key"), stub
}

func TestRemoteCreateAndGet(t *testing.T) {
	repo, _ := newRemoteStub(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, seedCreate("Bilocale"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Bilocale", p.Nome)

	p, err = repo.Get(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRemoteCreateDuplicateName(t *testing.T) {
	repo, _ := newRemoteStub(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, seedCreate("Bilocale"))
	require.NoError(t, err)

	// the duplicate is caught by the pre-check, before any insert
	_, err = repo.Create(ctx, seedCreate("Bilocale"))
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestRemoteCreateInvalidNeverCallsBackend(t *testing.T) {
	repo, stub := newRemoteStub(t)

	c := seedCreate("Bilocale")
	c.MQEffettivi = -1
	_, err := repo.Create(context.Background(), c)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, stub.rows)
}

func TestRemoteListFiltersAndOrdering(t *testing.T) {
	repo, _ := newRemoteStub(t)
	ctx := context.Background()

	a := seedCreate("zeta")
	a.ValoreMQ = 1000
	_, err := repo.Create(ctx, a)
	require.NoError(t, err)

	b := seedCreate("Alfa")
	b.ValoreMQ = 5000
	b.AffittatoA = strPtr("Mario Rossi")
	_, err = repo.Create(ctx, b)
	require.NoError(t, err)

	all, err := repo.List(ctx, PropertyFilters{})
	require.NoError(t, err)
	// same whitelist as the other stores: default is case-insensitive name
	assert.Equal(t, []string{"Alfa", "zeta"}, names(all))

	byValue, err := repo.List(ctx, PropertyFilters{OrderBy: OrderByValoreMQDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alfa", "zeta"}, names(byValue))

	rented, err := repo.List(ctx, PropertyFilters{RentedOnly: true})
	require.NoError(t, err)
	require.Len(t, rented, 1)
	assert.Equal(t, "Alfa", rented[0].Nome)

	unpaid, err := repo.List(ctx, PropertyFilters{UnpaidOnly: true})
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, "Alfa", unpaid[0].Nome)
}

func TestRemoteUpdateMergeValidation(t *testing.T) {
	repo, stub := newRemoteStub(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, seedCreate("Bilocale"))
	require.NoError(t, err)

	// hosted schema enforces nothing; the merged row is validated here
	_, err = repo.Update(ctx, id, &domain.PropertyUpdate{MQEffettivi: floatPtr(500)})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, stub.patches)

	ok, err := repo.Update(ctx, id, &domain.PropertyUpdate{AffittatoA: strPtr("Mario Rossi")})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, stub.patches, 1)
	assert.Equal(t, "Mario Rossi", stub.patches[0]["affittato_a"])
	assert.Contains(t, stub.patches[0], "updated_at")

	// unknown id short-circuits before any PATCH
	ok, err = repo.Update(ctx, 999, &domain.PropertyUpdate{AffittoMensile: floatPtr(1)})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, stub.patches, 1)
}

func TestRemoteUpdateClearsWithNull(t *testing.T) {
	repo, stub := newRemoteStub(t)
	ctx := context.Background()

	c := seedCreate("Bilocale")
	c.AffittatoA = strPtr("Mario Rossi")
	id, err := repo.Create(ctx, c)
	require.NoError(t, err)

	ok, err := repo.Update(ctx, id, &domain.PropertyUpdate{AffittatoA: strPtr("")})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, stub.patches, 1)
	v, present := stub.patches[0]["affittato_a"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestRemoteDelete(t *testing.T) {
	repo, _ := newRemoteStub(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, seedCreate("Bilocale"))
	require.NoError(t, err)

	ok, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

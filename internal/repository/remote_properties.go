package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"immobili-data/internal/domain"
)

// RemotePropertiesRepo is the hosted-backend variant, speaking the backend's
// PostgREST-style table API. The hosted schema enforces no constraints
// client-visible, so every invariant is re-checked here before a write;
// partial updates fetch the current row, merge, and re-validate.
//
// No retries: one call per operation, the caller sees the first failure.
type RemotePropertiesRepo struct {
	client *resty.Client
}

const proprietaTable = "/rest/v1/proprieta"

func NewRemotePropertiesRepo(baseURL, apiKey string) *RemotePropertiesRepo {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("apikey", apiKey).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &RemotePropertiesRepo{client: client}
}

// remoteRow is the table API's JSON row shape.
type remoteRow struct {
	ID              int64    `json:"id,omitempty"`
	Nome            string   `json:"nome"`
	Indirizzo       string   `json:"indirizzo"`
	MQEffettivi     float64  `json:"mq_effettivi"`
	MQCommerciali   float64  `json:"mq_commerciali"`
	ValoreMQ        float64  `json:"valore_mq"`
	AffittatoA      *string  `json:"affittato_a"`
	AffittoMensile  float64  `json:"affitto_mensile"`
	ContrattoInizio *string  `json:"contratto_inizio"`
	ContrattoFine   *string  `json:"contratto_fine"`
	MensilitaPagata bool     `json:"mensilita_pagata"`
	Foglio          *float64 `json:"foglio"`
	Particella      *float64 `json:"particella"`
	Subalterno      *float64 `json:"subalterno"`
	ZonaCens        *string  `json:"zona_cens"`
	Categoria       *string  `json:"categoria"`
	Classe          *string  `json:"classe"`
	Quota           *string  `json:"quota"`
	ImmaginePath    *string  `json:"immagine_path"`
	ImmagineURL     *string  `json:"immagine_url"`
	ContrattoPath   *string  `json:"contratto_path"`
	ContrattoURL    *string  `json:"contratto_url"`
	CreatedAt       string   `json:"created_at,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

func (row *remoteRow) toDomain() *domain.Property {
	p := &domain.Property{
		ID:              row.ID,
		Nome:            row.Nome,
		Indirizzo:       row.Indirizzo,
		MQEffettivi:     row.MQEffettivi,
		MQCommerciali:   row.MQCommerciali,
		ValoreMQ:        row.ValoreMQ,
		AffittatoA:      nullFromPtr(row.AffittatoA),
		AffittoMensile:  row.AffittoMensile,
		ContrattoInizio: dateFromPtr(trimDatePtr(row.ContrattoInizio)),
		ContrattoFine:   dateFromPtr(trimDatePtr(row.ContrattoFine)),
		MensilitaPagata: row.MensilitaPagata,
		Foglio:          floatFromPtr(row.Foglio),
		Particella:      floatFromPtr(row.Particella),
		Subalterno:      floatFromPtr(row.Subalterno),
		ZonaCens:        nullFromPtr(row.ZonaCens),
		Categoria:       nullFromPtr(row.Categoria),
		Classe:          nullFromPtr(row.Classe),
		Quota:           nullFromPtr(row.Quota),
		ImmaginePath:    nullFromPtr(row.ImmaginePath),
		ImmagineURL:     nullFromPtr(row.ImmagineURL),
		ContrattoPath:   nullFromPtr(row.ContrattoPath),
		ContrattoURL:    nullFromPtr(row.ContrattoURL),
		CreatedAt:       parseRemoteTime(row.CreatedAt),
		UpdatedAt:       parseRemoteTime(row.UpdatedAt),
	}
	return p
}

func nullFromPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func floatFromPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func dateFromPtr(s *string) sql.NullTime {
	if s == nil || *s == "" {
		return sql.NullTime{}
	}
	t, err := time.Parse(domain.DateLayout, *s)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// trimDatePtr cuts a timestamp-shaped cell down to the date part; backends
// differ on whether DATE columns come back with a time suffix.
func trimDatePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	if len(v) > len(domain.DateLayout) {
		v = v[:len(domain.DateLayout)]
	}
	return &v
}

func parseRemoteTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (r *RemotePropertiesRepo) Create(ctx context.Context, c *domain.PropertyCreate) (int64, error) {
	if c == nil {
		return 0, domain.Validationf("payload is required")
	}
	if err := c.Validate(); err != nil {
		return 0, err
	}

	taken, err := r.nameTaken(ctx, c.Nome, 0)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, domain.Validationf("nome already exists")
	}

	var created []remoteRow
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(createToRow(c)).
		SetResult(&created).
		Post(proprietaTable)
	if err != nil {
		return 0, fmt.Errorf("failed to create proprieta: %w", err)
	}
	if resp.IsError() {
		return 0, remoteError("create", resp)
	}
	if len(created) == 0 {
		return 0, fmt.Errorf("create returned no row")
	}
	return created[0].ID, nil
}

func createToRow(c *domain.PropertyCreate) *remoteRow {
	return &remoteRow{
		Nome:            c.Nome,
		Indirizzo:       c.Indirizzo,
		MQEffettivi:     c.MQEffettivi,
		MQCommerciali:   c.MQCommerciali,
		ValoreMQ:        c.ValoreMQ,
		AffittatoA:      c.AffittatoA,
		AffittoMensile:  c.AffittoMensile,
		ContrattoInizio: c.ContrattoInizio,
		ContrattoFine:   c.ContrattoFine,
		MensilitaPagata: c.MensilitaPagata,
		Foglio:          c.Foglio,
		Particella:      c.Particella,
		Subalterno:      c.Subalterno,
		ZonaCens:        c.ZonaCens,
		Categoria:       c.Categoria,
		Classe:          c.Classe,
		Quota:           c.Quota,
		ImmaginePath:    c.ImmaginePath,
	}
}

func (r *RemotePropertiesRepo) List(ctx context.Context, filters PropertyFilters) ([]*domain.Property, error) {
	req := r.client.R().SetContext(ctx).SetQueryParam("select", "*")

	if filters.RentedOnly {
		req.SetQueryParam("affittato_a", "not.is.null")
	}
	if filters.UnpaidOnly {
		req.SetQueryParam("mensilita_pagata", "is.false")
		if !filters.RentedOnly {
			req.SetQueryParam("affittato_a", "not.is.null")
		}
	}
	if filters.ExpiringWithinDays > 0 {
		cutoff := time.Now().AddDate(0, 0, filters.ExpiringWithinDays).Format(domain.DateLayout)
		req.SetQueryParam("contratto_fine", "lte."+cutoff)
	}

	var rows []remoteRow
	resp, err := req.SetResult(&rows).Get(proprietaTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list proprieta: %w", err)
	}
	if resp.IsError() {
		return nil, remoteError("list", resp)
	}

	out := make([]*domain.Property, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	// Ordering is applied here rather than in the query string so the same
	// closed whitelist (and its fallback) governs both store variants.
	sortProperties(out, filters.OrderBy)
	return out, nil
}

func (r *RemotePropertiesRepo) Get(ctx context.Context, id int64) (*domain.Property, error) {
	rows, err := r.fetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

func (r *RemotePropertiesRepo) fetchByID(ctx context.Context, id int64) ([]remoteRow, error) {
	var rows []remoteRow
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("id", fmt.Sprintf("eq.%d", id)).
		SetResult(&rows).
		Get(proprietaTable)
	if err != nil {
		return nil, fmt.Errorf("failed to get proprieta %d: %w", id, err)
	}
	if resp.IsError() {
		return nil, remoteError("get", resp)
	}
	return rows, nil
}

func (r *RemotePropertiesRepo) Update(ctx context.Context, id int64, u *domain.PropertyUpdate) (bool, error) {
	if u == nil || u.Empty() {
		return false, domain.Validationf("no fields to update")
	}
	if err := u.Validate(); err != nil {
		return false, err
	}

	// Merge-then-validate: the hosted schema has no CHECK constraints, so the
	// adapter is the enforcement point.
	current, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}
	merged := *current
	merged.Apply(u)
	if err := merged.CheckInvariants(); err != nil {
		return false, err
	}
	if u.Nome != nil && *u.Nome != current.Nome {
		taken, err := r.nameTaken(ctx, *u.Nome, id)
		if err != nil {
			return false, err
		}
		if taken {
			return false, domain.Validationf("nome already exists")
		}
	}

	patch := updateToPatch(u)
	patch["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("id", fmt.Sprintf("eq.%d", id)).
		SetBody(patch).
		Patch(proprietaTable)
	if err != nil {
		return false, fmt.Errorf("failed to update proprieta %d: %w", id, err)
	}
	if resp.IsError() {
		return false, remoteError("update", resp)
	}
	return true, nil
}

// updateToPatch keeps only the supplied fields; "" on nullable text clears
// the column.
func updateToPatch(u *domain.PropertyUpdate) map[string]any {
	patch := map[string]any{}
	setText := func(col string, v *string) {
		if v == nil {
			return
		}
		if *v == "" {
			patch[col] = nil
		} else {
			patch[col] = *v
		}
	}
	setFloat := func(col string, v *float64) {
		if v != nil {
			patch[col] = *v
		}
	}
	if u.Nome != nil {
		patch["nome"] = *u.Nome
	}
	if u.Indirizzo != nil {
		patch["indirizzo"] = *u.Indirizzo
	}
	setFloat("mq_effettivi", u.MQEffettivi)
	setFloat("mq_commerciali", u.MQCommerciali)
	setFloat("valore_mq", u.ValoreMQ)
	setText("affittato_a", u.AffittatoA)
	setFloat("affitto_mensile", u.AffittoMensile)
	setText("contratto_inizio", u.ContrattoInizio)
	setText("contratto_fine", u.ContrattoFine)
	if u.MensilitaPagata != nil {
		patch["mensilita_pagata"] = *u.MensilitaPagata
	}
	setFloat("foglio", u.Foglio)
	setFloat("particella", u.Particella)
	setFloat("subalterno", u.Subalterno)
	setText("zona_cens", u.ZonaCens)
	setText("categoria", u.Categoria)
	setText("classe", u.Classe)
	setText("quota", u.Quota)
	setText("immagine_path", u.ImmaginePath)
	setText("immagine_url", u.ImmagineURL)
	setText("contratto_path", u.ContrattoPath)
	setText("contratto_url", u.ContrattoURL)
	return patch
}

func (r *RemotePropertiesRepo) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted []remoteRow
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("id", fmt.Sprintf("eq.%d", id)).
		SetHeader("Prefer", "return=representation").
		SetResult(&deleted).
		Delete(proprietaTable)
	if err != nil {
		return false, fmt.Errorf("failed to delete proprieta %d: %w", id, err)
	}
	if resp.IsError() {
		return false, remoteError("delete", resp)
	}
	return len(deleted) > 0, nil
}

func (r *RemotePropertiesRepo) nameTaken(ctx context.Context, nome string, excludeID int64) (bool, error) {
	var rows []remoteRow
	req := r.client.R().
		SetContext(ctx).
		SetQueryParam("select", "id").
		SetQueryParam("nome", "eq."+nome)
	if excludeID > 0 {
		req.SetQueryParam("id", fmt.Sprintf("neq.%d", excludeID))
	}
	resp, err := req.SetResult(&rows).Get(proprietaTable)
	if err != nil {
		return false, fmt.Errorf("failed to check nome: %w", err)
	}
	if resp.IsError() {
		return false, remoteError("check nome", resp)
	}
	return len(rows) > 0, nil
}

func remoteError(op string, resp *resty.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(resp.Body(), &body)
	if resp.StatusCode() == http.StatusConflict {
		return domain.Validationf("nome already exists")
	}
	if body.Message != "" {
		return fmt.Errorf("%s failed: %s (status %d)", op, body.Message, resp.StatusCode())
	}
	return fmt.Errorf("%s failed: status %d", op, resp.StatusCode())
}

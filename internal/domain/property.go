package domain

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date format used on the wire and in
// spreadsheet cells.
const DateLayout = "2006-01-02"

// Property is one real-estate unit row (table `proprieta`).
// Column and JSON names keep the original Italian wire format so exported
// data stays compatible with existing spreadsheets and clients.
type Property struct {
	ID int64 `db:"id"`

	// Core attributes (required)
	Nome          string  `db:"nome"`           // unique
	Indirizzo     string  `db:"indirizzo"`
	MQEffettivi   float64 `db:"mq_effettivi"`   // > 0
	MQCommerciali float64 `db:"mq_commerciali"` // >= mq_effettivi
	ValoreMQ      float64 `db:"valore_mq"`      // > 0

	// Rental sub-state: a non-null affittato_a means the unit is rented.
	AffittatoA      sql.NullString `db:"affittato_a"`
	AffittoMensile  float64        `db:"affitto_mensile"` // >= 0
	ContrattoInizio sql.NullTime   `db:"contratto_inizio"`
	ContrattoFine   sql.NullTime   `db:"contratto_fine"` // >= inizio when both set
	MensilitaPagata bool           `db:"mensilita_pagata"`

	// Cadastral sub-record (all optional, opaque metadata)
	Foglio     sql.NullFloat64 `db:"foglio"`
	Particella sql.NullFloat64 `db:"particella"`
	Subalterno sql.NullFloat64 `db:"subalterno"`
	ZonaCens   sql.NullString  `db:"zona_cens"`
	Categoria  sql.NullString  `db:"categoria"`
	Classe     sql.NullString  `db:"classe"`
	Quota      sql.NullString  `db:"quota"`

	// Document attachments; path is the storage key, url is derived and may
	// be absent even when the path is present.
	ImmaginePath  sql.NullString `db:"immagine_path"`
	ImmagineURL   sql.NullString `db:"immagine_url"`
	ContrattoPath sql.NullString `db:"contratto_path"`
	ContrattoURL  sql.NullString `db:"contratto_url"`

	// Audit, set by the store only.
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Rented reports whether the unit currently has a tenant.
func (p *Property) Rented() bool {
	return p.AffittatoA.Valid && p.AffittatoA.String != ""
}

// TotalValue is the commercial value of the unit (mq_commerciali * valore_mq).
func (p *Property) TotalValue() float64 {
	return p.MQCommerciali * p.ValoreMQ
}

// DaysToExpiry returns the whole days between now and the contract end date.
// ok is false when no end date is set; a negative count means the contract
// already expired.
func (p *Property) DaysToExpiry(now time.Time) (days int, ok bool) {
	if !p.ContrattoFine.Valid {
		return 0, false
	}
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := p.ContrattoFine.Time
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(endDay.Sub(nowDay).Hours() / 24), true
}

// MatchesSearch does a case-insensitive substring match across the name,
// address and cadastral fields. Numeric cadastral values are matched on their
// formatted representation, same as the original system.
func (p *Property) MatchesSearch(q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	fields := []string{
		p.Nome,
		p.Indirizzo,
		nullStr(p.ZonaCens),
		nullStr(p.Categoria),
		nullStr(p.Classe),
		nullFloatStr(p.Foglio),
		nullFloatStr(p.Particella),
		nullFloatStr(p.Subalterno),
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// ToJSON converts to the HTTP response shape. Null columns are omitted.
func (p *Property) ToJSON() map[string]any {
	m := map[string]any{
		"id":               p.ID,
		"nome":             p.Nome,
		"indirizzo":        p.Indirizzo,
		"mq_effettivi":     p.MQEffettivi,
		"mq_commerciali":   p.MQCommerciali,
		"valore_mq":        p.ValoreMQ,
		"affitto_mensile":  p.AffittoMensile,
		"mensilita_pagata": p.MensilitaPagata,
		"valore_totale":    p.TotalValue(),
		"created_at":       p.CreatedAt.Format("2006-01-02 15:04:05"),
		"updated_at":       p.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
	if p.AffittatoA.Valid {
		m["affittato_a"] = p.AffittatoA.String
	}
	if p.ContrattoInizio.Valid {
		m["contratto_inizio"] = p.ContrattoInizio.Time.Format(DateLayout)
	}
	if p.ContrattoFine.Valid {
		m["contratto_fine"] = p.ContrattoFine.Time.Format(DateLayout)
	}
	if p.Foglio.Valid {
		m["foglio"] = p.Foglio.Float64
	}
	if p.Particella.Valid {
		m["particella"] = p.Particella.Float64
	}
	if p.Subalterno.Valid {
		m["subalterno"] = p.Subalterno.Float64
	}
	if p.ZonaCens.Valid {
		m["zona_cens"] = p.ZonaCens.String
	}
	if p.Categoria.Valid {
		m["categoria"] = p.Categoria.String
	}
	if p.Classe.Valid {
		m["classe"] = p.Classe.String
	}
	if p.Quota.Valid {
		m["quota"] = p.Quota.String
	}
	if p.ImmaginePath.Valid {
		m["immagine_path"] = p.ImmaginePath.String
	}
	if p.ImmagineURL.Valid {
		m["immagine_url"] = p.ImmagineURL.String
	}
	if p.ContrattoPath.Valid {
		m["contratto_path"] = p.ContrattoPath.String
	}
	if p.ContrattoURL.Valid {
		m["contratto_url"] = p.ContrattoURL.String
	}
	return m
}

func nullStr(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}

func nullFloatStr(f sql.NullFloat64) string {
	if f.Valid {
		return fmt.Sprintf("%g", f.Float64)
	}
	return ""
}

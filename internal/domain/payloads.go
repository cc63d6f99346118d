package domain

import (
	"time"
	"unicode/utf8"
)

// PropertyCreate is the typed creation payload. Using an explicit struct
// instead of a map keeps missing/extra fields a compile-time concern.
// Dates travel as canonical YYYY-MM-DD strings.
type PropertyCreate struct {
	Nome          string  `json:"nome"`
	Indirizzo     string  `json:"indirizzo"`
	MQEffettivi   float64 `json:"mq_effettivi"`
	MQCommerciali float64 `json:"mq_commerciali"`
	ValoreMQ      float64 `json:"valore_mq"`

	AffittatoA      *string `json:"affittato_a"`
	AffittoMensile  float64 `json:"affitto_mensile"`
	ContrattoInizio *string `json:"contratto_inizio"`
	ContrattoFine   *string `json:"contratto_fine"`
	MensilitaPagata bool    `json:"mensilita_pagata"`

	Foglio     *float64 `json:"foglio"`
	Particella *float64 `json:"particella"`
	Subalterno *float64 `json:"subalterno"`
	ZonaCens   *string  `json:"zona_cens"`
	Categoria  *string  `json:"categoria"`
	Classe     *string  `json:"classe"`
	Quota      *string  `json:"quota"`

	ImmaginePath *string `json:"immagine_path"`
}

// Validate enforces the store-boundary invariants for creation.
func (c *PropertyCreate) Validate() error {
	if c.Nome == "" {
		return Validationf("nome is required")
	}
	if utf8.RuneCountInString(c.Nome) > 100 {
		return Validationf("nome must be at most 100 characters")
	}
	if c.Indirizzo == "" {
		return Validationf("indirizzo is required")
	}
	if c.MQEffettivi <= 0 {
		return Validationf("mq_effettivi must be > 0")
	}
	if c.MQCommerciali < c.MQEffettivi {
		return Validationf("mq_commerciali must be >= mq_effettivi")
	}
	if c.ValoreMQ <= 0 {
		return Validationf("valore_mq must be > 0")
	}
	if c.AffittoMensile < 0 {
		return Validationf("affitto_mensile must be >= 0")
	}
	inizio, err := parseOptionalDate(c.ContrattoInizio, "contratto_inizio")
	if err != nil {
		return err
	}
	fine, err := parseOptionalDate(c.ContrattoFine, "contratto_fine")
	if err != nil {
		return err
	}
	if inizio != nil && fine != nil && fine.Before(*inizio) {
		return Validationf("contratto_fine must be >= contratto_inizio")
	}
	return nil
}

// PropertyUpdate is the typed partial-update payload: nil means "leave the
// field alone". The id is deliberately not representable here. An empty
// string on a nullable text field clears it to NULL.
type PropertyUpdate struct {
	Nome          *string  `json:"nome"`
	Indirizzo     *string  `json:"indirizzo"`
	MQEffettivi   *float64 `json:"mq_effettivi"`
	MQCommerciali *float64 `json:"mq_commerciali"`
	ValoreMQ      *float64 `json:"valore_mq"`

	AffittatoA      *string  `json:"affittato_a"`
	AffittoMensile  *float64 `json:"affitto_mensile"`
	ContrattoInizio *string  `json:"contratto_inizio"`
	ContrattoFine   *string  `json:"contratto_fine"`
	MensilitaPagata *bool    `json:"mensilita_pagata"`

	Foglio     *float64 `json:"foglio"`
	Particella *float64 `json:"particella"`
	Subalterno *float64 `json:"subalterno"`
	ZonaCens   *string  `json:"zona_cens"`
	Categoria  *string  `json:"categoria"`
	Classe     *string  `json:"classe"`
	Quota      *string  `json:"quota"`

	ImmaginePath  *string `json:"immagine_path"`
	ImmagineURL   *string `json:"immagine_url"`
	ContrattoPath *string `json:"contratto_path"`
	ContrattoURL  *string `json:"contratto_url"`
}

// Empty reports whether the update carries no fields at all.
func (u *PropertyUpdate) Empty() bool {
	return u.Nome == nil && u.Indirizzo == nil && u.MQEffettivi == nil &&
		u.MQCommerciali == nil && u.ValoreMQ == nil && u.AffittatoA == nil &&
		u.AffittoMensile == nil && u.ContrattoInizio == nil && u.ContrattoFine == nil &&
		u.MensilitaPagata == nil && u.Foglio == nil && u.Particella == nil &&
		u.Subalterno == nil && u.ZonaCens == nil && u.Categoria == nil &&
		u.Classe == nil && u.Quota == nil && u.ImmaginePath == nil &&
		u.ImmagineURL == nil && u.ContrattoPath == nil && u.ContrattoURL == nil
}

// Validate enforces the per-field rules that hold regardless of the current
// row. Cross-field invariants against unchanged fields are checked by the
// storage layer (DB constraints locally, merge-then-check remotely).
func (u *PropertyUpdate) Validate() error {
	if u.Nome != nil {
		if *u.Nome == "" {
			return Validationf("nome cannot be empty")
		}
		if utf8.RuneCountInString(*u.Nome) > 100 {
			return Validationf("nome must be at most 100 characters")
		}
	}
	if u.Indirizzo != nil && *u.Indirizzo == "" {
		return Validationf("indirizzo cannot be empty")
	}
	if u.MQEffettivi != nil && *u.MQEffettivi <= 0 {
		return Validationf("mq_effettivi must be > 0")
	}
	if u.MQCommerciali != nil && *u.MQCommerciali <= 0 {
		return Validationf("mq_commerciali must be > 0")
	}
	if u.ValoreMQ != nil && *u.ValoreMQ <= 0 {
		return Validationf("valore_mq must be > 0")
	}
	if u.AffittoMensile != nil && *u.AffittoMensile < 0 {
		return Validationf("affitto_mensile must be >= 0")
	}
	inizio, err := parseOptionalDate(u.ContrattoInizio, "contratto_inizio")
	if err != nil {
		return err
	}
	fine, err := parseOptionalDate(u.ContrattoFine, "contratto_fine")
	if err != nil {
		return err
	}
	if u.MQEffettivi != nil && u.MQCommerciali != nil && *u.MQCommerciali < *u.MQEffettivi {
		return Validationf("mq_commerciali must be >= mq_effettivi")
	}
	if inizio != nil && fine != nil && fine.Before(*inizio) {
		return Validationf("contratto_fine must be >= contratto_inizio")
	}
	return nil
}

// Apply merges the update into p (in place). Callers that need the merged
// invariants re-checked use CheckInvariants afterwards.
func (p *Property) Apply(u *PropertyUpdate) {
	if u.Nome != nil {
		p.Nome = *u.Nome
	}
	if u.Indirizzo != nil {
		p.Indirizzo = *u.Indirizzo
	}
	if u.MQEffettivi != nil {
		p.MQEffettivi = *u.MQEffettivi
	}
	if u.MQCommerciali != nil {
		p.MQCommerciali = *u.MQCommerciali
	}
	if u.ValoreMQ != nil {
		p.ValoreMQ = *u.ValoreMQ
	}
	if u.AffittatoA != nil {
		p.AffittatoA = optionalString(*u.AffittatoA)
	}
	if u.AffittoMensile != nil {
		p.AffittoMensile = *u.AffittoMensile
	}
	if u.ContrattoInizio != nil {
		p.ContrattoInizio = optionalDate(*u.ContrattoInizio)
	}
	if u.ContrattoFine != nil {
		p.ContrattoFine = optionalDate(*u.ContrattoFine)
	}
	if u.MensilitaPagata != nil {
		p.MensilitaPagata = *u.MensilitaPagata
	}
	if u.Foglio != nil {
		p.Foglio = sqlFloat(*u.Foglio)
	}
	if u.Particella != nil {
		p.Particella = sqlFloat(*u.Particella)
	}
	if u.Subalterno != nil {
		p.Subalterno = sqlFloat(*u.Subalterno)
	}
	if u.ZonaCens != nil {
		p.ZonaCens = optionalString(*u.ZonaCens)
	}
	if u.Categoria != nil {
		p.Categoria = optionalString(*u.Categoria)
	}
	if u.Classe != nil {
		p.Classe = optionalString(*u.Classe)
	}
	if u.Quota != nil {
		p.Quota = optionalString(*u.Quota)
	}
	if u.ImmaginePath != nil {
		p.ImmaginePath = optionalString(*u.ImmaginePath)
	}
	if u.ImmagineURL != nil {
		p.ImmagineURL = optionalString(*u.ImmagineURL)
	}
	if u.ContrattoPath != nil {
		p.ContrattoPath = optionalString(*u.ContrattoPath)
	}
	if u.ContrattoURL != nil {
		p.ContrattoURL = optionalString(*u.ContrattoURL)
	}
}

// CheckInvariants re-validates the cross-field invariants on a merged row.
func (p *Property) CheckInvariants() error {
	if p.Nome == "" {
		return Validationf("nome is required")
	}
	if p.Indirizzo == "" {
		return Validationf("indirizzo is required")
	}
	if p.MQEffettivi <= 0 {
		return Validationf("mq_effettivi must be > 0")
	}
	if p.MQCommerciali < p.MQEffettivi {
		return Validationf("mq_commerciali must be >= mq_effettivi")
	}
	if p.ValoreMQ <= 0 {
		return Validationf("valore_mq must be > 0")
	}
	if p.AffittoMensile < 0 {
		return Validationf("affitto_mensile must be >= 0")
	}
	if p.ContrattoInizio.Valid && p.ContrattoFine.Valid && p.ContrattoFine.Time.Before(p.ContrattoInizio.Time) {
		return Validationf("contratto_fine must be >= contratto_inizio")
	}
	return nil
}

// FromCreate builds the entity view of a creation payload (id and audit
// fields unset). Assumes the payload already passed Validate.
func FromCreate(c *PropertyCreate) *Property {
	p := &Property{
		Nome:            c.Nome,
		Indirizzo:       c.Indirizzo,
		MQEffettivi:     c.MQEffettivi,
		MQCommerciali:   c.MQCommerciali,
		ValoreMQ:        c.ValoreMQ,
		AffittoMensile:  c.AffittoMensile,
		MensilitaPagata: c.MensilitaPagata,
	}
	if c.AffittatoA != nil {
		p.AffittatoA = optionalString(*c.AffittatoA)
	}
	if c.ContrattoInizio != nil {
		p.ContrattoInizio = optionalDate(*c.ContrattoInizio)
	}
	if c.ContrattoFine != nil {
		p.ContrattoFine = optionalDate(*c.ContrattoFine)
	}
	if c.Foglio != nil {
		p.Foglio = sqlFloat(*c.Foglio)
	}
	if c.Particella != nil {
		p.Particella = sqlFloat(*c.Particella)
	}
	if c.Subalterno != nil {
		p.Subalterno = sqlFloat(*c.Subalterno)
	}
	if c.ZonaCens != nil {
		p.ZonaCens = optionalString(*c.ZonaCens)
	}
	if c.Categoria != nil {
		p.Categoria = optionalString(*c.Categoria)
	}
	if c.Classe != nil {
		p.Classe = optionalString(*c.Classe)
	}
	if c.Quota != nil {
		p.Quota = optionalString(*c.Quota)
	}
	if c.ImmaginePath != nil {
		p.ImmaginePath = optionalString(*c.ImmaginePath)
	}
	return p
}

func parseOptionalDate(s *string, field string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil, Validationf("%s must be a %s date", field, DateLayout)
	}
	return &t, nil
}

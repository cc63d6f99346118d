package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"immobili-data/internal/domain"
)

// PostgresPropertiesRepo is the local-store variant: single-statement writes
// against one `proprieta` table whose constraints mirror the domain
// invariants.
type PostgresPropertiesRepo struct {
	db *sql.DB
}

func NewPostgresPropertiesRepo(db *sql.DB) *PostgresPropertiesRepo {
	return &PostgresPropertiesRepo{db: db}
}

// schemaSQL is executed once, on first startup against an empty database.
// There is no migration path beyond this.
const schemaSQL = `
CREATE TABLE proprieta (
	id               BIGSERIAL PRIMARY KEY,
	nome             TEXT NOT NULL UNIQUE CHECK (char_length(nome) BETWEEN 1 AND 100),
	indirizzo        TEXT NOT NULL,
	mq_effettivi     DOUBLE PRECISION NOT NULL CHECK (mq_effettivi > 0),
	mq_commerciali   DOUBLE PRECISION NOT NULL CHECK (mq_commerciali >= mq_effettivi),
	valore_mq        DOUBLE PRECISION NOT NULL CHECK (valore_mq > 0),
	affittato_a      TEXT,
	affitto_mensile  DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (affitto_mensile >= 0),
	contratto_inizio DATE,
	contratto_fine   DATE,
	mensilita_pagata BOOLEAN NOT NULL DEFAULT FALSE,
	foglio           DOUBLE PRECISION,
	particella       DOUBLE PRECISION,
	subalterno       DOUBLE PRECISION,
	zona_cens        TEXT,
	categoria        TEXT,
	classe           TEXT,
	quota            TEXT,
	immagine_path    TEXT,
	immagine_url     TEXT,
	contratto_path   TEXT,
	contratto_url    TEXT,
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (contratto_fine IS NULL OR contratto_inizio IS NULL OR contratto_fine >= contratto_inizio)
)`

// EnsureSchema creates the table on first startup and leaves an existing one
// untouched.
func (r *PostgresPropertiesRepo) EnsureSchema(ctx context.Context) error {
	var reg sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT to_regclass('proprieta')::text`).Scan(&reg); err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}
	if reg.Valid {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const propertyColumns = `
	id, nome, indirizzo, mq_effettivi, mq_commerciali, valore_mq,
	affittato_a, affitto_mensile, contratto_inizio, contratto_fine, mensilita_pagata,
	foglio, particella, subalterno, zona_cens, categoria, classe, quota,
	immagine_path, immagine_url, contratto_path, contratto_url,
	created_at, updated_at`

func scanProperty(s interface{ Scan(...any) error }) (*domain.Property, error) {
	var p domain.Property
	err := s.Scan(
		&p.ID, &p.Nome, &p.Indirizzo, &p.MQEffettivi, &p.MQCommerciali, &p.ValoreMQ,
		&p.AffittatoA, &p.AffittoMensile, &p.ContrattoInizio, &p.ContrattoFine, &p.MensilitaPagata,
		&p.Foglio, &p.Particella, &p.Subalterno, &p.ZonaCens, &p.Categoria, &p.Classe, &p.Quota,
		&p.ImmaginePath, &p.ImmagineURL, &p.ContrattoPath, &p.ContrattoURL,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create validates the payload and inserts a new row. Duplicate names and
// constraint violations surface as ValidationError; nothing is persisted on
// failure (single statement).
func (r *PostgresPropertiesRepo) Create(ctx context.Context, c *domain.PropertyCreate) (int64, error) {
	if c == nil {
		return 0, domain.Validationf("payload is required")
	}
	if err := c.Validate(); err != nil {
		return 0, err
	}

	p := domain.FromCreate(c)

	query := `
		INSERT INTO proprieta (
			nome, indirizzo, mq_effettivi, mq_commerciali, valore_mq,
			affittato_a, affitto_mensile, contratto_inizio, contratto_fine, mensilita_pagata,
			foglio, particella, subalterno, zona_cens, categoria, classe, quota,
			immagine_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		p.Nome, p.Indirizzo, p.MQEffettivi, p.MQCommerciali, p.ValoreMQ,
		p.AffittatoA, p.AffittoMensile, p.ContrattoInizio, p.ContrattoFine, p.MensilitaPagata,
		p.Foglio, p.Particella, p.Subalterno, p.ZonaCens, p.Categoria, p.Classe, p.Quota,
		p.ImmaginePath,
	).Scan(&id)
	if err != nil {
		if verr := pqValidation(err); verr != nil {
			return 0, verr
		}
		return 0, fmt.Errorf("failed to create proprieta: %w", err)
	}
	return id, nil
}

// orderClauses is the closed set of sort keys. Unknown keys fall back to the
// name ordering.
var orderClauses = map[string]string{
	OrderByNome:          "LOWER(nome) ASC",
	OrderByValoreMQDesc:  "valore_mq DESC",
	OrderByContrattoFine: "contratto_fine ASC NULLS LAST",
}

func orderClause(key string) string {
	if c, ok := orderClauses[key]; ok {
		return c
	}
	return orderClauses[OrderByNome]
}

func (r *PostgresPropertiesRepo) List(ctx context.Context, filters PropertyFilters) ([]*domain.Property, error) {
	where := []string{}
	args := []any{}
	argN := 1

	if filters.RentedOnly {
		where = append(where, "affittato_a IS NOT NULL")
	}
	if filters.UnpaidOnly {
		// vacant units are never "unpaid"
		where = append(where, "mensilita_pagata = FALSE AND affittato_a IS NOT NULL")
	}
	if filters.ExpiringWithinDays > 0 {
		where = append(where, fmt.Sprintf(
			"contratto_fine IS NOT NULL AND contratto_fine <= CURRENT_DATE + $%d * INTERVAL '1 day'", argN))
		args = append(args, filters.ExpiringWithinDays)
		argN++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := "SELECT " + propertyColumns + " FROM proprieta " + whereClause +
		" ORDER BY " + orderClause(filters.OrderBy)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proprieta: %w", err)
	}
	defer rows.Close()

	out := []*domain.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresPropertiesRepo) Get(ctx context.Context, id int64) (*domain.Property, error) {
	query := "SELECT " + propertyColumns + " FROM proprieta WHERE id = $1"
	p, err := scanProperty(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get proprieta %d: %w", id, err)
	}
	return p, nil
}

// Update applies only the supplied fields in one statement. Cross-field
// invariants against unchanged columns are enforced by the table's CHECK
// constraints, so a rejected update leaves the row untouched.
func (r *PostgresPropertiesRepo) Update(ctx context.Context, id int64, u *domain.PropertyUpdate) (bool, error) {
	if u == nil || u.Empty() {
		return false, domain.Validationf("no fields to update")
	}
	if err := u.Validate(); err != nil {
		return false, err
	}

	setParts := []string{}
	args := []any{}
	argN := 1

	set := func(column string, value any) {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, argN))
		args = append(args, value)
		argN++
	}
	setText := func(column string, v *string) {
		if v != nil {
			set(column, nullText(*v))
		}
	}
	setFloat := func(column string, v *float64) {
		if v != nil {
			set(column, *v)
		}
	}

	if u.Nome != nil {
		set("nome", *u.Nome)
	}
	if u.Indirizzo != nil {
		set("indirizzo", *u.Indirizzo)
	}
	setFloat("mq_effettivi", u.MQEffettivi)
	setFloat("mq_commerciali", u.MQCommerciali)
	setFloat("valore_mq", u.ValoreMQ)
	setText("affittato_a", u.AffittatoA)
	setFloat("affitto_mensile", u.AffittoMensile)
	setText("contratto_inizio", u.ContrattoInizio)
	setText("contratto_fine", u.ContrattoFine)
	if u.MensilitaPagata != nil {
		set("mensilita_pagata", *u.MensilitaPagata)
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

	setParts = append(setParts, "updated_at = CURRENT_TIMESTAMP")

	query := fmt.Sprintf("UPDATE proprieta SET %s WHERE id = $%d",
		strings.Join(setParts, ", "), argN)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if verr := pqValidation(err); verr != nil {
			return false, verr
		}
		return false, fmt.Errorf("failed to update proprieta %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresPropertiesRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM proprieta WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete proprieta %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// nullText maps "" to NULL for nullable text/date columns.
func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// pqValidation translates constraint violations into ValidationError;
// anything else stays a storage failure.
func pqValidation(err error) error {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}
	switch pqErr.Code {
	case "23505": // unique_violation
		return domain.Validationf("nome already exists")
	case "23514": // check_violation
		return domain.Validationf("constraint violated: %s", pqErr.Constraint)
	}
	return nil
}

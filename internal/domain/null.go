package domain

import (
	"database/sql"
	"time"
)

// optionalString maps "" to NULL, anything else to a valid value.
func optionalString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// optionalDate parses a canonical date string; "" or garbage maps to NULL
// (callers validate before applying).
func optionalDate(s string) sql.NullTime {
	if s == "" {
		return sql.NullTime{}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func sqlFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}

package repository

import (
	"context"

	"immobili-data/internal/domain"
)

// Order keys accepted by List. Anything else falls back to OrderByNome; raw
// user input never reaches an ORDER BY clause.
const (
	OrderByNome          = "nome"
	OrderByValoreMQDesc  = "valore_mq DESC"
	OrderByContrattoFine = "contratto_fine ASC"
)

// PropertyFilters are conjunctive and independently toggleable.
type PropertyFilters struct {
	RentedOnly bool // affittato_a is non-null
	UnpaidOnly bool // mensilita_pagata false AND affittato_a non-null
	// ExpiringWithinDays matches rows whose contratto_fine is within N days
	// from now; 0 disables the filter. Rows without an end date never match.
	ExpiringWithinDays int
	OrderBy            string
}

// PropertiesRepo is the record store. Two storage backends implement it
// (local Postgres, remote hosted table API) plus an in-memory variant for
// tests and dev fallback; callers never branch on which is active.
//
// Not-found is a result shape, not an error: Get returns (nil, nil) and
// Update/Delete return false for unknown ids.
type PropertiesRepo interface {
	Create(ctx context.Context, c *domain.PropertyCreate) (int64, error)
	List(ctx context.Context, filters PropertyFilters) ([]*domain.Property, error)
	Get(ctx context.Context, id int64) (*domain.Property, error)
	Update(ctx context.Context, id int64, u *domain.PropertyUpdate) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

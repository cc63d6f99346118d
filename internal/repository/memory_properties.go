package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"immobili-data/internal/domain"
)

// MemoryPropertiesRepo is a map-backed repo used by tests and as a dev
// fallback when the database is unreachable. Same semantics as the real
// stores, including the invariants and the ordering whitelist.
type MemoryPropertiesRepo struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*domain.Property
}

func NewMemoryPropertiesRepo() *MemoryPropertiesRepo {
	return &MemoryPropertiesRepo{rows: map[int64]*domain.Property{}}
}

func (r *MemoryPropertiesRepo) Create(_ context.Context, c *domain.PropertyCreate) (int64, error) {
	if c == nil {
		return 0, domain.Validationf("payload is required")
	}
	if err := c.Validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.Nome == c.Nome {
			return 0, domain.Validationf("nome already exists")
		}
	}

	r.nextID++
	p := domain.FromCreate(c)
	p.ID = r.nextID
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.rows[p.ID] = p
	return p.ID, nil
}

func (r *MemoryPropertiesRepo) List(_ context.Context, filters PropertyFilters) ([]*domain.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	out := []*domain.Property{}
	for _, p := range r.rows {
		if filters.RentedOnly && !p.Rented() {
			continue
		}
		if filters.UnpaidOnly && (p.MensilitaPagata || !p.Rented()) {
			continue
		}
		if filters.ExpiringWithinDays > 0 {
			days, ok := p.DaysToExpiry(now)
			if !ok || days > filters.ExpiringWithinDays {
				continue
			}
		}
		cp := *p
		out = append(out, &cp)
	}

	sortProperties(out, filters.OrderBy)
	return out, nil
}

func sortProperties(list []*domain.Property, orderBy string) {
	switch orderBy {
	case OrderByValoreMQDesc:
		sort.SliceStable(list, func(i, j int) bool { return list[i].ValoreMQ > list[j].ValoreMQ })
	case OrderByContrattoFine:
		sort.SliceStable(list, func(i, j int) bool {
			fi, fj := list[i].ContrattoFine, list[j].ContrattoFine
			if fi.Valid != fj.Valid {
				return fi.Valid // NULL end dates sort last
			}
			if !fi.Valid {
				return false
			}
			return fi.Time.Before(fj.Time)
		})
	default:
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Nome) < strings.ToLower(list[j].Nome)
		})
	}
}

func (r *MemoryPropertiesRepo) Get(_ context.Context, id int64) (*domain.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryPropertiesRepo) Update(_ context.Context, id int64, u *domain.PropertyUpdate) (bool, error) {
	if u == nil || u.Empty() {
		return false, domain.Validationf("no fields to update")
	}
	if err := u.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.rows[id]
	if !ok {
		return false, nil
	}

	merged := *cur
	merged.Apply(u)
	if err := merged.CheckInvariants(); err != nil {
		return false, err
	}
	if u.Nome != nil {
		for otherID, row := range r.rows {
			if otherID != id && row.Nome == merged.Nome {
				return false, domain.Validationf("nome already exists")
			}
		}
	}

	merged.UpdatedAt = time.Now()
	r.rows[id] = &merged
	return true, nil
}

func (r *MemoryPropertiesRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immobili-data/internal/domain"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func seedCreate(nome string) *domain.PropertyCreate {
	return &domain.PropertyCreate{
		Nome:          nome,
		Indirizzo:     "Via Roma 1",
		MQEffettivi:   80,
		MQCommerciali: 95,
		ValoreMQ:      3000,
	}
}

func TestMemoryCreateAndGet(t *testing.T) {
	repo := NewMemoryPropertiesRepo()
	ctx := context.Background()

	id, err := repo.Create(ctx, seedCreate("Bilocale"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Bilocale", p.Nome)
	assert.False(t, p.CreatedAt.IsZero())

	// unknown id is a nil result, not an error
	p, err = repo.Get(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMemoryCreateDuplicateName(t *testing.T) {
	repo := NewMemoryPropertiesRepo()
	ctx := context.Background()

	_, err := repo.Create(ctx, seedCreate("Bilocale"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, seedCreate("Bilocale"))
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "nome already exists")
}

func TestMemoryCreateRejectsInvalid(t *testing.T) {
	repo := NewMemoryPropertiesRepo()
	ctx := context.Background()

	c := seedCreate("Bilocale")
	c.MQCommerciali = 10
	_, err := repo.Create(ctx, c)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	items, err := repo.List(ctx, PropertyFilters{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemoryListFilters(t *testing.T) {
	repo := NewMemoryPropertiesRepo()
	ctx := context.Background()

	// vacant unit
	_, err := repo.Create(ctx, seedCreate("Vuoto"))
	require.NoError(t, err)

	// rented and paid
	paid := seedCreate("Affittato Pagato")
	paid.AffittatoA = strPtr("Mario Rossi")
	paid.AffittoMensile = 800
	paid.MensilitaPagata = true
	_, err = repo.Create(ctx, paid)
	require.NoError(t, err)

	// rented, not paid, expiring soon
	soon := time.Now().AddDate(0, 0, 20).Format(domain.DateLayout)
	unpaid := seedCreate("Affittato Moroso")
	unpaid.AffittatoA = strPtr("Luigi Bianchi")
	unpaid.AffittoMensile = 650
	unpaid.ContrattoFine = &soon
	_, err = repo.Create(ctx, unpaid)
	require.NoError(t, err)

	all, err := repo.List(ctx, PropertyFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rented, err := repo.List(ctx, PropertyFilters{RentedOnly: true})
	require.NoError(t, err)
	assert.Len(t, rented, 2)

	// unpaid means rented AND not paid; the vacant unit never counts
	late, err := repo.List(ctx, PropertyFilters{UnpaidOnly: true})
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, "Affittato Moroso", late[0].Nome)

	expiring, err := repo.List(ctx, PropertyFilters{ExpiringWithinDays: 30})
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "Affittato Moroso", expiring[0].Nome)

	expiring, err = repo.List(ctx, PropertyFilters{ExpiringWithinDays: 10})
	require.NoError(t, err)
	assert.Empty(t, expiring)
}

func TestMemoryListOrdering(t *testing.T) {
	repo := NewMemoryPropertiesRepo()
	ctx := context.Background()

	cheap := seedCreate("zeta")
	cheap.ValoreMQ = 1000
	_, err := repo.Create(ctx, cheap)
	require.NoError(t, err)

	mid := seedCreate("Alfa")
	mid.ValoreMQ = 2000
	fine := "2026-06-30"
	mid.ContrattoFine = &fine
	_, err = repo.Create(ctx, mid)
	require.NoError(t, err)

	dear := seedCreate("Beta")
	dear.ValoreMQ = 3000
	earlier := "2026-01-31"
	dear.ContrattoFine = &earlier
	_, err = repo.Create(ctx, dear)
	require.NoError(t, err)

	// default: case-insensitive name
	items, err := repo.List(ctx, PropertyFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alfa", "Beta", "zeta"}, names(items))

	items, err = repo.List(ctx, PropertyFilters{OrderBy: OrderByValoreMQDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta", "Alfa", "zeta"}, names(items))

	// soonest end date first, missing end dates last
	items, err = repo.List(ctx, PropertyFilters{OrderBy: OrderByContrattoFine})
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta", "Alfa", "zeta"}, names(items))

	// anything outside the whitelist falls back to the name ordering
	items, err = repo.List(ctx, PropertyFilters{OrderBy: "id; DROP TABLE proprieta"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alfa", "Beta", "zeta"}, names(items))
}

func names(items []*domain.Property) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.Nome
	}
	return out
}

func TestMemoryUpdate(t *testing.T) {
	repo := NewMemoryPropertiesRepo()
	ctx := context.Background()

	id, err := repo.Create(ctx, seedCreate("Bilocale"))
	require.NoError(t, err)

	ok, err := repo.Update(ctx, id, &domain.PropertyUpdate{
		AffittatoA:     strPtr("Mario Rossi"),
		AffittoMensile: floatPtr(750),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Mario Rossi", p.AffittatoA.String)
	assert.Equal(t, 750.0, p.AffittoMensile)

	// unknown id
	ok, err = repo.Update(ctx, 999, &domain.PropertyUpdate{AffittoMensile: floatPtr(1)})
	require.NoError(t, err)
	assert.False(t, ok)

	// empty patch
	_, err = repo.Update(ctx, id, &domain.PropertyUpdate{})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	// merged invariant check catches a single-field violation
	_, err = repo.Update(ctx, id, &domain.PropertyUpdate{MQEffettivi: floatPtr(200)})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	// rename collision
	_, err = repo.Create(ctx, seedCreate("Trilocale"))
	require.NoError(t, err)
	_, err = repo.Update(ctx, id, &domain.PropertyUpdate{Nome: strPtr("Trilocale")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nome already exists")

	// renaming to the current name is fine
	ok, err = repo.Update(ctx, id, &domain.PropertyUpdate{Nome: strPtr("Bilocale")})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryDelete(t *testing.T) {
	repo := NewMemoryPropertiesRepo()
	ctx := context.Background()

	id, err := repo.Create(ctx, seedCreate("Bilocale"))
	require.NoError(t, err)

	ok, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, p)
}

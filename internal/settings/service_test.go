package settings

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/maison-pos/pkg/config"
	"github.com/angelmondragon/maison-pos/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

func testConfig() *config.Config {
	return &config.Config{
		POS:     config.POSConfig{DefaultCurrencyCode: "cad"},
		Pricing: config.PricingConfig{RegisterTaxRate: "0.13", FederalTaxRate: "0.05", ProvincialRate: "0.08"},
		Store:   config.StoreConfig{Name: "MAISON", Footer: "Thank you"},
	}
}

func newService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t).DB())
	svc, err := NewService(repo, testConfig(), nil)
	require.NoError(t, err)
	return svc, repo
}

func TestFallsBackToConfig(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	r, err := svc.ReadTaxRate(ctx)
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.RequireFromString("0.13")))

	currency, err := svc.ReadCurrency(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CAD", currency)

	profile, err := svc.ReadStoreProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, StoreProfile{Name: "MAISON", Footer: "Thank you"}, profile)

	plan, err := svc.StorefrontPlan(ctx)
	require.NoError(t, err)
	require.Len(t, plan.Components, 2)
	assert.True(t, plan.Rate().Equal(decimal.RequireFromString("0.13")))
}

func TestStoredValuesOverride(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, KeyRegisterTaxRate, "0.15"))
	require.NoError(t, repo.Put(ctx, KeyRegisterTaxRate, "0.14975"))
	require.NoError(t, repo.Put(ctx, KeyStoreName, "Maison Lune"))
	require.NoError(t, repo.Put(ctx, KeyCurrency, "usd"))

	plan, err := svc.RegisterPlan(ctx)
	require.NoError(t, err)
	require.Len(t, plan.Components, 1)
	assert.Equal(t, "0.14975", plan.Rate().String())

	profile, err := svc.ReadStoreProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Maison Lune", profile.Name)
	assert.Equal(t, "Thank you", profile.Footer)

	currency, err := svc.ReadCurrency(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", currency)
}

func TestInvalidRateIsReported(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, KeyFederalTaxRate, "five percent"))

	_, err := svc.StorefrontPlan(ctx)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	require.NoError(t, repo.Put(ctx, KeyRegisterTaxRate, "1.3"))
	_, err = svc.ReadTaxRate(ctx)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/internal/pricing"
	"github.com/angelmondragon/maison-pos/pkg/config"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

// Setting keys.
const (
	KeyRegisterTaxRate   = "tax.register_rate"
	KeyFederalTaxRate    = "tax.federal_rate"
	KeyProvincialTaxRate = "tax.provincial_rate"
	KeyCurrency          = "currency"
	KeyStoreName         = "store.name"
	KeyStoreAddress      = "store.address"
	KeyStorePhone        = "store.phone"
	KeyStoreTaxID        = "store.tax_id"
	KeyReceiptFooter     = "store.receipt_footer"
)

// StoreProfile is the header and footer printed on receipts.
type StoreProfile struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	TaxID   string `json:"tax_id"`
	Footer  string `json:"footer"`
}

// Service is the Settings Store. Rows override the configured defaults.
type Service interface {
	ReadTaxRate(ctx context.Context) (decimal.Decimal, error)
	ReadCurrency(ctx context.Context) (string, error)
	ReadStoreProfile(ctx context.Context) (StoreProfile, error)
	RegisterPlan(ctx context.Context) (pricing.TaxPlan, error)
	StorefrontPlan(ctx context.Context) (pricing.TaxPlan, error)
}

type settingsRepository interface {
	Values(ctx context.Context, keys ...string) (map[string]string, error)
}

type service struct {
	repo     settingsRepository
	pricing  config.PricingConfig
	store    config.StoreConfig
	currency string
	logg     *logger.Logger
}

// NewService constructs the settings service over the configured fallbacks.
func NewService(repo settingsRepository, cfg *config.Config, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	return &service{
		repo:     repo,
		pricing:  cfg.Pricing,
		store:    cfg.Store,
		currency: cfg.POS.DefaultCurrencyCode,
		logg:     logg,
	}, nil
}

func (s *service) ReadTaxRate(ctx context.Context) (decimal.Decimal, error) {
	values, err := s.values(ctx, KeyRegisterTaxRate)
	if err != nil {
		return decimal.Zero, err
	}
	return rate(KeyRegisterTaxRate, values[KeyRegisterTaxRate], s.pricing.RegisterTaxRate)
}

func (s *service) ReadCurrency(ctx context.Context) (string, error) {
	values, err := s.values(ctx, KeyCurrency)
	if err != nil {
		return "", err
	}
	code := strings.ToUpper(strings.TrimSpace(values[KeyCurrency]))
	if code == "" {
		code = strings.ToUpper(strings.TrimSpace(s.currency))
	}
	if len(code) != 3 {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "currency setting must be an ISO 4217 code").
			WithDetails(map[string]any{"currency": code})
	}
	return code, nil
}

func (s *service) ReadStoreProfile(ctx context.Context) (StoreProfile, error) {
	values, err := s.values(ctx, KeyStoreName, KeyStoreAddress, KeyStorePhone, KeyStoreTaxID, KeyReceiptFooter)
	if err != nil {
		return StoreProfile{}, err
	}
	return StoreProfile{
		Name:    pick(values[KeyStoreName], s.store.Name),
		Address: pick(values[KeyStoreAddress], s.store.Address),
		Phone:   pick(values[KeyStorePhone], s.store.Phone),
		TaxID:   pick(values[KeyStoreTaxID], s.store.TaxID),
		Footer:  pick(values[KeyReceiptFooter], s.store.Footer),
	}, nil
}

// RegisterPlan is the flat rate used at the register.
func (s *service) RegisterPlan(ctx context.Context) (pricing.TaxPlan, error) {
	r, err := s.ReadTaxRate(ctx)
	if err != nil {
		return pricing.TaxPlan{}, err
	}
	return pricing.Flat(r), nil
}

// StorefrontPlan is the federal plus provincial split used by the storefront quote.
func (s *service) StorefrontPlan(ctx context.Context) (pricing.TaxPlan, error) {
	values, err := s.values(ctx, KeyFederalTaxRate, KeyProvincialTaxRate)
	if err != nil {
		return pricing.TaxPlan{}, err
	}
	federal, err := rate(KeyFederalTaxRate, values[KeyFederalTaxRate], s.pricing.FederalTaxRate)
	if err != nil {
		return pricing.TaxPlan{}, err
	}
	provincial, err := rate(KeyProvincialTaxRate, values[KeyProvincialTaxRate], s.pricing.ProvincialRate)
	if err != nil {
		return pricing.TaxPlan{}, err
	}
	return pricing.Split(federal, provincial), nil
}

func (s *service) values(ctx context.Context, keys ...string) (map[string]string, error) {
	values, err := s.repo.Values(ctx, keys...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read settings")
	}
	return values, nil
}

func rate(key, stored, fallback string) (decimal.Decimal, error) {
	raw := pick(stored, fallback)
	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() || value.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInternal, "tax rate setting is invalid").
			WithDetails(map[string]any{"key": key, "value": raw})
	}
	return value, nil
}

func pick(stored, fallback string) string {
	if v := strings.TrimSpace(stored); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

// Package registertest assembles a complete register stack over an in-memory
// SQLite database for HTTP and end-to-end tests.
package registertest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/maison-pos/internal/catalog"
	"github.com/angelmondragon/maison-pos/internal/discounts"
	"github.com/angelmondragon/maison-pos/internal/orders"
	"github.com/angelmondragon/maison-pos/internal/payments"
	"github.com/angelmondragon/maison-pos/internal/receipts"
	"github.com/angelmondragon/maison-pos/internal/register"
	"github.com/angelmondragon/maison-pos/internal/settings"
	"github.com/angelmondragon/maison-pos/internal/sku"
	"github.com/angelmondragon/maison-pos/internal/staff"
	"github.com/angelmondragon/maison-pos/internal/storefront"
	"github.com/angelmondragon/maison-pos/pkg/config"
	"github.com/angelmondragon/maison-pos/pkg/db"
	"github.com/angelmondragon/maison-pos/pkg/db/dbtest"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	"github.com/angelmondragon/maison-pos/pkg/outbox"
)

// Operator PINs seeded by New.
const (
	CashierPIN = "4821"
	ManagerPIN = "7734"
)

// Env is a wired register stack. Every register shares one simulated gateway.
type Env struct {
	Config     *config.Config
	DB         *db.Client
	Gateway    *payments.SimulatedGateway
	Registers  *register.Manager
	Staff      staff.Service
	Catalog    catalog.Service
	Discounts  discounts.Service
	Settings   settings.Service
	Orders     orders.Service
	Receipts   receipts.Service
	Storefront storefront.Service

	CashierID uuid.UUID
	ManagerID uuid.UUID
	Category  *models.Category
	Product   *models.Product
}

// Config returns the configuration the stack is built with.
func Config() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: config.AppEnvDev, Port: "0"},
		JWT: config.JWTConfig{Secret: "registertest-secret", Issuer: "maison-pos", ExpirationMinutes: 60},
		Password: config.PasswordConfig{
			ArgonMemoryKB:    64,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		},
		POS: config.POSConfig{
			IdleTimeout:         5 * time.Minute,
			WatchdogInterval:    time.Hour,
			SKUSequenceBackend:  config.SequenceBackendDB,
			CardCollectTimeout:  5 * time.Second,
			GatewayStepTimeout:  5 * time.Second,
			DefaultCurrencyCode: "CAD",
		},
		Pricing: config.PricingConfig{RegisterTaxRate: "0.13", FederalTaxRate: "0.05", ProvincialRate: "0.08"},
		Store:   config.StoreConfig{Name: "MAISON NOOR", Address: "12 Rue Clark", Footer: "Merci"},
	}
}

// New builds the stack and seeds a cashier, a manager, one abaya variant at
// 42.00 with five in stock, and the SAVE10 percentage code.
func New(t testing.TB) *Env {
	t.Helper()
	ctx := context.Background()
	cfg := Config()
	client := dbtest.Open(t)
	events := outbox.NewService(outbox.NewRepository(client.DB()), nil)

	env := &Env{Config: cfg, DB: client, Gateway: payments.NewSimulatedGateway()}

	staffSvc, err := staff.NewService(staff.NewRepository(client.DB()), cfg.Password, nil)
	must(t, err)
	env.Staff = staffSvc
	cashier, err := staffSvc.CreateStaff(ctx, staff.CreateInput{DisplayName: "Amira", Role: enums.StaffRoleCashier, PIN: CashierPIN})
	must(t, err)
	manager, err := staffSvc.CreateStaff(ctx, staff.CreateInput{DisplayName: "Nadia", Role: enums.StaffRoleManager, PIN: ManagerPIN})
	must(t, err)
	env.CashierID, env.ManagerID = cashier.ID, manager.ID

	catalogRepo := catalog.NewRepository(client.DB())
	env.Category, err = catalogRepo.CreateCategory(ctx, &models.Category{Code: "ABA", Name: "Abayas"})
	must(t, err)
	allocator, err := sku.NewAllocator(catalogRepo, sku.NewGormSequence(client.DB()), nil, nil)
	must(t, err)
	env.Catalog, err = catalog.NewService(catalogRepo, client, allocator, events, nil, nil)
	must(t, err)
	size, color := "M", "Black"
	created, err := env.Catalog.CreateProduct(ctx, catalog.CreateProductInput{
		Name:       "Linen Abaya",
		CategoryID: &env.Category.ID,
		UnitPrice:  decimal.RequireFromString("42.00"),
		Stock:      5,
		Size:       &size,
		Color:      &color,
	})
	must(t, err)
	env.Product = created.Product

	discountRepo := discounts.NewRepository(client.DB())
	_, err = discountRepo.Create(ctx, &models.Discount{Code: "SAVE10", Type: enums.DiscountTypePercentage, Value: decimal.NewFromInt(10), IsActive: true})
	must(t, err)
	env.Discounts, err = discounts.NewService(discountRepo, client, nil)
	must(t, err)

	env.Settings, err = settings.NewService(settings.NewRepository(client.DB()), cfg, nil)
	must(t, err)

	env.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(client.DB()),
		Tx:        client,
		Outbox:    events,
		Inventory: catalogRepo,
		Usage:     env.Discounts,
		Profile:   env.Settings,
	})
	must(t, err)

	env.Receipts, err = receipts.NewService(env.Orders, staff.NewRepository(client.DB()), env.Settings)
	must(t, err)
	env.Storefront, err = storefront.NewService(env.Catalog, env.Discounts, env.Settings, nil)
	must(t, err)

	env.Registers, err = register.NewManager(register.ManagerParams{
		Config:    cfg,
		Products:  env.Catalog,
		Discounts: env.Discounts,
		Plans:     env.Settings,
		Currency:  env.Settings,
		Orders:    env.Orders,
		Staff:     staffSvc,
		Gateways:  func(string) (payments.Gateway, error) { return env.Gateway, nil },
	})
	must(t, err)
	t.Cleanup(env.Registers.Close)
	return env
}

// Login signs an operator in at a register and returns the bearer token.
func (e *Env) Login(t testing.TB, registerID string, staffID uuid.UUID, pin string) string {
	t.Helper()
	reg, err := e.Registers.Get(context.Background(), registerID)
	must(t, err)
	res, err := reg.Guard().Login(context.Background(), staffID, pin)
	must(t, err)
	return res.Token
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("registertest: %v", err)
	}
}

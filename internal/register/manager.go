package register

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/maison-pos/internal/payments"
	"github.com/angelmondragon/maison-pos/internal/session"
	"github.com/angelmondragon/maison-pos/pkg/config"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	"github.com/angelmondragon/maison-pos/pkg/metrics"
)

var registerIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// Store is the Redis surface used for register locks and login limits.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	RegisterLockKey(registerID string) string
}

// CurrencyReader resolves the store currency when a register opens.
type CurrencyReader interface {
	ReadCurrency(ctx context.Context) (string, error)
}

// GatewayFactory returns the card gateway for a register.
type GatewayFactory func(registerID string) (payments.Gateway, error)

// ManagerParams holds the shared collaborators every register is built from.
// Currency, Store, Clock, Metrics and Logger are optional.
type ManagerParams struct {
	Config    *config.Config
	Products  ProductReader
	Discounts DiscountValidator
	Plans     PlanReader
	Currency  CurrencyReader
	Orders    Finalizer
	Staff     session.StaffVerifier
	Gateways  GatewayFactory
	Store     Store
	Clock     session.Clock
	Metrics   *metrics.RegisterMetrics
	Logger    *logger.Logger
}

// Manager owns the registers of this process, building each on first use and
// running its idle watchdog until Close.
type Manager struct {
	params ManagerParams

	runCtx context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	registers map[string]*Register
}

// NewManager validates the shared collaborators.
func NewManager(params ManagerParams) (*Manager, error) {
	switch {
	case params.Config == nil:
		return nil, fmt.Errorf("config required")
	case params.Products == nil:
		return nil, fmt.Errorf("product reader required")
	case params.Discounts == nil:
		return nil, fmt.Errorf("discount validator required")
	case params.Plans == nil:
		return nil, fmt.Errorf("plan reader required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order finalizer required")
	case params.Staff == nil:
		return nil, fmt.Errorf("staff verifier required")
	case params.Gateways == nil:
		return nil, fmt.Errorf("gateway factory required")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		params:    params,
		runCtx:    runCtx,
		cancel:    cancel,
		registers: map[string]*Register{},
	}, nil
}

// Get returns the register, creating it on first use.
func (m *Manager) Get(ctx context.Context, registerID string) (*Register, error) {
	id := strings.ToLower(strings.TrimSpace(registerID))
	if !registerIDPattern.MatchString(id) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid register id").
			WithDetails(map[string]any{"register_id": registerID})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runCtx.Err() != nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "register manager is shutting down")
	}
	if r, ok := m.registers[id]; ok {
		return r, nil
	}
	r, err := m.build(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build register")
	}
	r.guard.Start(m.runCtx)
	m.registers[id] = r
	if m.params.Logger != nil {
		m.params.Logger.Info(m.params.Logger.WithRegisterID(ctx, id), "register opened")
	}
	return r, nil
}

// Registers lists the ids of the registers opened so far.
func (m *Manager) Registers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.registers))
	for id := range m.registers {
		ids = append(ids, id)
	}
	return ids
}

// Close stops every watchdog. Registers cannot be opened afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancel()
	registers := make([]*Register, 0, len(m.registers))
	for _, r := range m.registers {
		registers = append(registers, r)
	}
	m.mu.Unlock()
	for _, r := range registers {
		r.guard.Stop()
	}
}

func (m *Manager) build(ctx context.Context, id string) (*Register, error) {
	cfg := m.params.Config
	currency := cfg.POS.DefaultCurrencyCode
	if m.params.Currency != nil {
		stored, err := m.params.Currency.ReadCurrency(ctx)
		if err != nil {
			return nil, fmt.Errorf("read currency: %w", err)
		}
		currency = stored
	}
	gateway, err := m.params.Gateways(id)
	if err != nil {
		return nil, fmt.Errorf("card gateway: %w", err)
	}
	orchestrator, err := payments.NewOrchestrator(gateway, payments.Options{
		StepTimeout:    cfg.POS.GatewayStepTimeout,
		CollectTimeout: cfg.POS.CardCollectTimeout,
		Currency:       currency,
	}, m.params.Metrics, m.params.Logger)
	if err != nil {
		return nil, err
	}

	deps := session.Deps{
		Staff:   m.params.Staff,
		Clock:   m.params.Clock,
		Metrics: m.params.Metrics,
		Logger:  m.params.Logger,
	}
	if m.params.Store != nil {
		lock, err := session.NewRedisLock(m.params.Store, m.params.Store.RegisterLockKey(id), cfg.POS.RegisterLockTTL)
		if err != nil {
			return nil, err
		}
		deps.Lock = lock
		deps.Limiter = m.params.Store
	}
	guard, err := session.NewGuard(session.Options{
		RegisterID:       id,
		IdleTimeout:      cfg.POS.IdleTimeout,
		WatchdogInterval: cfg.POS.WatchdogInterval,
		JWT:              cfg.JWT,
	}, deps)
	if err != nil {
		return nil, err
	}

	var now func() time.Time
	if m.params.Clock != nil {
		now = m.params.Clock.Now
	}
	return New(Options{
		ID:              id,
		Currency:        currency,
		ClearCartOnIdle: cfg.POS.ClearCartOnIdle,
	}, Deps{
		Products:     m.params.Products,
		Discounts:    m.params.Discounts,
		Plans:        m.params.Plans,
		Orders:       m.params.Orders,
		Orchestrator: orchestrator,
		Guard:        guard,
		Now:          now,
		Logger:       m.params.Logger,
	})
}

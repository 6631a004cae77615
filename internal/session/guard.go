package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/maison-pos/internal/payments"
	pkgAuth "github.com/angelmondragon/maison-pos/pkg/auth"
	"github.com/angelmondragon/maison-pos/pkg/config"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	"github.com/angelmondragon/maison-pos/pkg/metrics"
	"github.com/angelmondragon/maison-pos/pkg/redis"
)

const (
	defaultIdleTimeout      = 5 * time.Minute
	defaultWatchdogInterval = 10 * time.Second
	defaultLoginAttempts    = 5
	defaultLoginWindow      = time.Minute
)

// Reason says why a session ended.
type Reason string

const (
	ReasonIdle   Reason = "idle"
	ReasonLogout Reason = "logout"
	ReasonSwitch Reason = "switch"
)

// Idle logout metric outcomes.
const (
	outcomeCleared  = "cleared"
	outcomeDeferred = "deferred"
	outcomeReleased = "released"
)

// Session is the operator signed in at a register.
type Session struct {
	ID              string          `json:"session_id"`
	StaffID         uuid.UUID       `json:"staff_id"`
	DisplayName     string          `json:"display_name"`
	Role            enums.StaffRole `json:"role"`
	AuthenticatedAt time.Time       `json:"authenticated_at"`
	LastActivityAt  time.Time       `json:"last_activity_at"`
}

// LoginResult carries the session and its register-bound token.
type LoginResult struct {
	Session Session `json:"session"`
	Token   string  `json:"token"`
}

// Status is the read model behind GET /session.
type Status struct {
	Active        bool     `json:"active"`
	Idle          bool     `json:"is_idle"`
	LogoutPending bool     `json:"logout_pending"`
	Session       *Session `json:"session,omitempty"`
}

// StaffVerifier is the Staff Store credential check.
type StaffVerifier interface {
	VerifyCredential(ctx context.Context, staffID uuid.UUID, pin string) (*models.Staff, error)
}

// RateLimiter bounds login attempts per register and operator.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// PaymentHold reports whether a card payment sits between authorization and capture.
type PaymentHold interface {
	HoldsFunds() bool
}

// LogoutHook runs after a session ends, outside the guard's lock.
type LogoutHook func(ctx context.Context, ended Session, reason Reason)

// Options configures a Guard.
type Options struct {
	RegisterID       string
	IdleTimeout      time.Duration
	WatchdogInterval time.Duration
	JWT              config.JWTConfig
	LoginAttempts    int64
	LoginWindow      time.Duration
}

// Deps bundles the collaborators of a Guard. Lock, Limiter, Hold and OnLogout are optional.
type Deps struct {
	Staff    StaffVerifier
	Lock     RegisterLock
	Limiter  RateLimiter
	Hold     PaymentHold
	Clock    Clock
	OnLogout LogoutHook
	Metrics  *metrics.RegisterMetrics
	Logger   *logger.Logger
}

// Guard owns the operator session of one register and logs it out when idle.
// A logout that comes due while a card holds funds is deferred until the
// payment leaves card_processing/card_capturing.
type Guard struct {
	opts     Options
	staff    StaffVerifier
	lock     RegisterLock
	limiter  RateLimiter
	hold     PaymentHold
	clock    Clock
	onLogout LogoutHook
	metrics  *metrics.RegisterMetrics
	logg     *logger.Logger

	mu      sync.Mutex
	current *Session
	pending bool

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

// NewGuard builds a guard for one register.
func NewGuard(opts Options, deps Deps) (*Guard, error) {
	if strings.TrimSpace(opts.RegisterID) == "" {
		return nil, fmt.Errorf("register id required")
	}
	if deps.Staff == nil {
		return nil, fmt.Errorf("staff verifier required")
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.WatchdogInterval <= 0 {
		opts.WatchdogInterval = defaultWatchdogInterval
	}
	if opts.LoginAttempts <= 0 {
		opts.LoginAttempts = defaultLoginAttempts
	}
	if opts.LoginWindow <= 0 {
		opts.LoginWindow = defaultLoginWindow
	}
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Guard{
		opts:     opts,
		staff:    deps.Staff,
		lock:     deps.Lock,
		limiter:  deps.Limiter,
		hold:     deps.Hold,
		clock:    clock,
		onLogout: deps.OnLogout,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
	}, nil
}

// SetPaymentHold wires the orchestrator after construction.
func (g *Guard) SetPaymentHold(hold PaymentHold) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hold = hold
}

// SetLogoutHook replaces the hook run after a session ends.
func (g *Guard) SetLogoutHook(hook LogoutHook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onLogout = hook
}

func (g *Guard) ctx(ctx context.Context) context.Context {
	if g.logg == nil {
		return ctx
	}
	return g.logg.WithRegisterID(ctx, g.opts.RegisterID)
}

// Login verifies the operator and opens a session. Signing in while another
// operator holds the register replaces them, unless a card is holding funds.
func (g *Guard) Login(ctx context.Context, staffID uuid.UUID, pin string) (*LoginResult, error) {
	ctx = g.ctx(ctx)
	if staffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff_id is required")
	}
	if g.limiter != nil {
		allowed, _, err := g.limiter.FixedWindowAllow(ctx, redis.LoginRateLimitScope(g.opts.RegisterID, staffID.String()), g.opts.LoginAttempts, g.opts.LoginWindow)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check login rate limit")
		}
		if !allowed {
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts")
		}
	}

	member, err := g.staff.VerifyCredential(ctx, staffID, pin)
	if err != nil {
		if g.logg != nil {
			g.logg.Warn(g.logg.WithStaffID(ctx, staffID.String()), "register login rejected")
		}
		return nil, err
	}
	if g.holdingFunds() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a card payment is in progress")
	}

	if g.lock != nil {
		ok, err := g.lock.Acquire(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire register lock")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "register is in use by another session").
				WithDetails(map[string]any{"register_id": g.opts.RegisterID})
		}
	}

	now := g.clock.Now().UTC()
	next := &Session{
		ID:              uuid.NewString(),
		StaffID:         member.ID,
		DisplayName:     member.DisplayName,
		Role:            member.Role,
		AuthenticatedAt: now,
		LastActivityAt:  now,
	}
	token, err := pkgAuth.MintRegisterToken(g.opts.JWT, now, pkgAuth.RegisterTokenPayload{
		StaffID:    member.ID,
		RegisterID: g.opts.RegisterID,
		Role:       member.Role,
		SessionID:  next.ID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint register token")
	}

	g.mu.Lock()
	previous := g.current
	g.current = next
	g.pending = false
	hook := g.onLogout
	g.mu.Unlock()

	if previous != nil && hook != nil {
		hook(ctx, *previous, ReasonSwitch)
	}
	if g.logg != nil {
		g.logg.Info(g.logg.WithStaffID(ctx, member.ID.String()), "register session started")
	}
	return &LoginResult{Session: *next, Token: token}, nil
}

// Authenticate resolves a register token to the live session it was minted for.
func (g *Guard) Authenticate(ctx context.Context, token string) (Session, error) {
	claims, err := pkgAuth.ParseRegisterToken(g.opts.JWT, token)
	if err != nil {
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid register token")
	}
	if claims.RegisterID != g.opts.RegisterID {
		return Session{}, pkgerrors.New(pkgerrors.CodeForbidden, "token belongs to another register")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || g.current.ID != claims.SessionID() {
		return Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session has ended")
	}
	return *g.current, nil
}

// Touch records operator activity and clears a pending logout. An idle session
// is never renewed: it ends here and the caller must sign in again.
func (g *Guard) Touch(ctx context.Context) error {
	ctx = g.ctx(ctx)
	now := g.clock.Now().UTC()

	g.mu.Lock()
	if g.current == nil {
		g.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session")
	}
	if g.idleLocked(now) && !g.pending && !g.holdingFunds() {
		ended := g.endLocked()
		hook := g.onLogout
		g.mu.Unlock()
		g.finish(ctx, ended, ReasonIdle, hook)
		g.metrics.IncIdleLogout(outcomeCleared)
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	}
	g.current.LastActivityAt = now
	g.pending = false
	g.mu.Unlock()
	return nil
}

// Logout ends the session on operator request.
func (g *Guard) Logout(ctx context.Context) error {
	ctx = g.ctx(ctx)
	if g.holdingFunds() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "a card payment is in progress")
	}
	g.mu.Lock()
	if g.current == nil {
		g.mu.Unlock()
		return nil
	}
	ended := g.endLocked()
	hook := g.onLogout
	g.mu.Unlock()
	g.finish(ctx, ended, ReasonLogout, hook)
	return nil
}

// Current returns the active session.
func (g *Guard) Current() (Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return Session{}, false
	}
	return *g.current, true
}

// IsIdle reports whether the active session has gone without activity past the timeout.
func (g *Guard) IsIdle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil && g.idleLocked(g.clock.Now().UTC())
}

// Status summarizes the guard for the session endpoint.
func (g *Guard) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	status := Status{LogoutPending: g.pending}
	if g.current != nil {
		s := *g.current
		status.Active = true
		status.Session = &s
		status.Idle = g.idleLocked(g.clock.Now().UTC())
	}
	return status
}

// LogoutPending reports whether an idle logout waits for a payment to resolve.
func (g *Guard) LogoutPending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// Check runs one watchdog pass. It reports whether the session was cleared.
func (g *Guard) Check(ctx context.Context) bool {
	ctx = g.ctx(ctx)
	now := g.clock.Now().UTC()

	g.mu.Lock()
	if g.current == nil || !g.idleLocked(now) {
		g.mu.Unlock()
		return false
	}
	if g.holdingFunds() {
		deferred := !g.pending
		g.pending = true
		staffID := g.current.StaffID
		g.mu.Unlock()
		if deferred {
			g.metrics.IncIdleLogout(outcomeDeferred)
			if g.logg != nil {
				g.logg.Info(g.logg.WithStaffID(ctx, staffID.String()), "idle logout deferred until payment resolves")
			}
		}
		return false
	}
	ended := g.endLocked()
	hook := g.onLogout
	g.mu.Unlock()

	g.finish(ctx, ended, ReasonIdle, hook)
	g.metrics.IncIdleLogout(outcomeCleared)
	return true
}

// PaymentStateChanged implements payments.Observer. A deferred logout runs
// once the attempt leaves the states that hold funds.
func (g *Guard) PaymentStateChanged(change payments.StateChange) {
	if change.To.HoldsFunds() {
		return
	}
	ctx := g.ctx(context.Background())
	g.mu.Lock()
	if !g.pending || g.current == nil {
		g.mu.Unlock()
		return
	}
	ended := g.endLocked()
	hook := g.onLogout
	g.mu.Unlock()

	if g.logg != nil {
		g.logg.Info(g.logg.WithField(ctx, "payment_state", change.To), "deferred idle logout released")
	}
	g.finish(ctx, ended, ReasonIdle, hook)
	g.metrics.IncIdleLogout(outcomeReleased)
}

// Start launches the watchdog goroutine. It is a no-op when already running.
func (g *Guard) Start(ctx context.Context) {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	if g.stop != nil {
		return
	}
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	ticker := g.clock.NewTicker(g.opts.WatchdogInterval)
	go g.watch(ctx, ticker, g.stop, g.done)
}

// Stop halts the watchdog and waits for it to exit.
func (g *Guard) Stop() {
	g.runMu.Lock()
	stop, done := g.stop, g.done
	g.stop, g.done = nil, nil
	g.runMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (g *Guard) watch(ctx context.Context, ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C():
			g.Check(ctx)
		}
	}
}

func (g *Guard) idleLocked(now time.Time) bool {
	return now.Sub(g.current.LastActivityAt) > g.opts.IdleTimeout
}

func (g *Guard) holdingFunds() bool {
	return g.hold != nil && g.hold.HoldsFunds()
}

func (g *Guard) endLocked() Session {
	ended := *g.current
	g.current = nil
	g.pending = false
	return ended
}

func (g *Guard) finish(ctx context.Context, ended Session, reason Reason, hook LogoutHook) {
	if g.lock != nil {
		if err := g.lock.Release(ctx); err != nil && g.logg != nil {
			g.logg.Error(ctx, "failed to release register lock", err)
		}
	}
	if g.logg != nil {
		g.logg.Info(g.logg.WithFields(ctx, map[string]any{
			"staff_id": ended.StaffID.String(),
			"reason":   reason,
		}), "register session ended")
	}
	if hook != nil {
		hook(ctx, ended, reason)
	}
}

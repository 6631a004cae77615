package middleware

import (
	"context"

	"github.com/angelmondragon/maison-pos/internal/register"
	"github.com/angelmondragon/maison-pos/internal/session"
	"github.com/angelmondragon/maison-pos/pkg/enums"
)

type contextKey string

const (
	ctxRegister contextKey = "register"
	ctxSession  contextKey = "register_session"
)

// RegisterFromContext returns the register resolved for the request, if any.
func RegisterFromContext(ctx context.Context) *register.Register {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxRegister).(*register.Register); ok {
		return v
	}
	return nil
}

// SessionFromContext returns the authenticated operator session.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	if ctx == nil {
		return session.Session{}, false
	}
	s, ok := ctx.Value(ctxSession).(session.Session)
	return s, ok
}

func RoleFromContext(ctx context.Context) enums.StaffRole {
	if s, ok := SessionFromContext(ctx); ok {
		return s.Role
	}
	return ""
}

func StaffIDFromContext(ctx context.Context) string {
	if s, ok := SessionFromContext(ctx); ok {
		return s.StaffID.String()
	}
	return ""
}

func RegisterIDFromContext(ctx context.Context) string {
	if r := RegisterFromContext(ctx); r != nil {
		return r.ID()
	}
	return ""
}

// WithRegister injects the register into the context for downstream handlers.
func WithRegister(ctx context.Context, reg *register.Register) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRegister, reg)
}

// WithSession injects the authenticated session.
func WithSession(ctx context.Context, s session.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSession, s)
}

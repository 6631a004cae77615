package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/maison-pos/api/responses"
	"github.com/angelmondragon/maison-pos/internal/register"
	pkgAuth "github.com/angelmondragon/maison-pos/pkg/auth"
	"github.com/angelmondragon/maison-pos/pkg/config"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

// RegisterIDParam is the chi URL parameter naming the register.
const RegisterIDParam = "registerId"

// RegisterResolver returns the live register for an id.
type RegisterResolver interface {
	Get(ctx context.Context, registerID string) (*register.Register, error)
}

// Register resolves the register named in the URL and seeds the context with it.
func Register(resolver RegisterResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg, err := resolver.Get(r.Context(), chi.URLParam(r, RegisterIDParam))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithRegister(r.Context(), reg)
			if logg != nil {
				ctx = logg.WithRegisterID(ctx, reg.ID())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Auth validates a register bearer token against the live session of the
// register it was minted for. On routes without a register in the URL the
// register comes from the token itself.
func Auth(cfg config.JWTConfig, resolver RegisterResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			ctx := r.Context()
			reg := RegisterFromContext(ctx)
			if reg == nil {
				claims, err := pkgAuth.ParseRegisterToken(cfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				reg, err = resolver.Get(ctx, claims.RegisterID)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				ctx = WithRegister(ctx, reg)
			}

			sess, err := reg.Guard().Authenticate(ctx, token)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithSession(ctx, sess)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"staff_id":    sess.StaffID.String(),
					"staff_role":  string(sess.Role),
					"register_id": reg.ID(),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

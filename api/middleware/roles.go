package middleware

import (
	"net/http"

	"github.com/angelmondragon/maison-pos/api/responses"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

// RequireRole admits only sessions whose staff member holds role. It must be
// mounted after Auth, which places the role on the context.
func RequireRole(role enums.StaffRole, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if held := RoleFromContext(ctx); held != role {
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"staff_id":      StaffIDFromContext(ctx),
						"register_id":   RegisterIDFromContext(ctx),
						"role_held":     string(held),
						"role_required": string(role),
					})
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required").WithDetail("role", string(role)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

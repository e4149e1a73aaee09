package middleware

import (
	"net/http"

	"github.com/angelmondragon/tamwill-backend/api/responses"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
)

// RequireRole admits callers holding any of the listed roles. It must run
// after Auth; a request without identity is rejected as unauthenticated.
func RequireRole(logg *logger.Logger, roles ...enums.UserRole) func(http.Handler) http.Handler {
	allowed := make(map[enums.UserRole]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
		names = append(names, role.String())
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := UserUUIDFromContext(ctx); !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			role, err := enums.ParseUserRole(RoleFromContext(ctx))
			if _, ok := allowed[role]; err != nil || !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted").
					WithDetails(map[string]any{"required_roles": names}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

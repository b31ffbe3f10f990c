package middleware

import (
	"net/http"

	"github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

// RequireCapability lets the request through when the actor's role has any of the capabilities.
// Services check again; this only short-circuits obvious denials.
func RequireCapability(base *transport.BaseHandler, capabilities ...authz.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := authz.ActorFromContext(r.Context())
			if !ok {
				base.WriteAppError(w, internal.ErrInvalidToken)
				return
			}

			for _, c := range capabilities {
				if actor.Can(c) {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.From(r.Context()).Warn("access denied: role lacks capability",
				"role", actor.Role,
				"required", capabilities)
			base.WriteAppError(w, internal.ErrForbidden)
		})
	}
}

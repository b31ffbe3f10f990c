package middleware

import (
	"context"
	"net/http"

	"github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

type ActorResolver interface {
	ActorForToken(ctx context.Context, token string) (authz.Actor, error)
}

// Authenticate resolves the bearer token to an actor and stores it in the request context.
func Authenticate(resolver ActorResolver, base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := transport.BearerToken(r)
			if token == "" {
				base.WriteAppError(w, internal.ErrInvalidToken)
				return
			}

			actor, err := resolver.ActorForToken(r.Context(), token)
			if err != nil {
				logger.From(r.Context()).Warn("authentication failed", "error", err)
				base.HandleServiceError(w, r, err)
				return
			}

			ctx := authz.WithActor(r.Context(), actor)
			ctx = internal.ContextWithUserID(ctx, actor.UserID)
			ctx = internal.ContextWithCompanyID(ctx, actor.CompanyID)
			ctx = logger.With(ctx, "user_id", actor.UserID, "company_id", actor.CompanyID, "role", string(actor.Role))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fixora/tollgate/application/port/inbound"
	"github.com/fixora/tollgate/infrastructure/http/validator"
)

const AdminKeyHeader = "X-Admin-Key"

type adminCredentialKey struct{}

// AdminCredentials copies whatever admin credential the request carries onto
// the context. It does not judge it; the recovery use case does.
func AdminCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred := inbound.AdminCredential{
			Key:   strings.TrimSpace(r.Header.Get(AdminKeyHeader)),
			Token: bearerToken(r.Header.Get("Authorization")),
		}
		ctx := context.WithValue(r.Context(), adminCredentialKey{}, cred)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAdminCredential retrieves the credential stored by AdminCredentials.
func GetAdminCredential(ctx context.Context) inbound.AdminCredential {
	if cred, ok := ctx.Value(adminCredentialKey{}).(inbound.AdminCredential); ok {
		return cred
	}
	return inbound.AdminCredential{}
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || !validator.ValidateJWT(parts[1]) {
		return ""
	}
	return parts[1]
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/candorhq/tacit/internal/api"
)

type contextKey string

const TenantIDKey contextKey = "tenant_id"

// RequireTenant extracts the tenant id from the X-Tenant-ID header and puts
// it on the request context. Requests without a tenant are rejected.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
		if tenantID == "" {
			api.Error(w, http.StatusBadRequest, "missing X-Tenant-ID header")
			return
		}

		ctx := context.WithValue(r.Context(), TenantIDKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTenantID returns the tenant ID from context.
func GetTenantID(ctx context.Context) string {
	tenantID, _ := ctx.Value(TenantIDKey).(string)
	return tenantID
}

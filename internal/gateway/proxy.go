package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
	"github.com/99004433/Multi-tenant-IAM/internal/httpapi"
	"github.com/99004433/Multi-tenant-IAM/internal/obs"
)

// newDirectoryProxy builds the reverse proxy to the directory service.
// Identity headers are attached in forward(), after authorization.
func newDirectoryProxy(target *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		obs.LogEntry(map[string]any{
			"level": "error",
			"msg":   "directory_proxy_error",
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": "upstream unavailable",
		})
	}
	return proxy
}

// forward stamps the authenticated identity onto the outbound request
// and hands it to the proxy.
func (s *Server) forward() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := auth.IdentityFromContext(r.Context()); ok {
			r.Header.Set(httpapi.HeaderUserID, identity.UserID)
			r.Header.Set(httpapi.HeaderUserEmail, identity.Email)
			r.Header.Set(httpapi.HeaderOrgID, identity.OrganizationID)
			r.Header.Set(httpapi.HeaderUserRoles, strings.Join(identity.Roles, ","))
		}
		if rid := httpapi.RequestIDFromContext(r.Context()); rid != "" {
			r.Header.Set(httpapi.HeaderRequestID, rid)
		}
		s.proxy.ServeHTTP(w, r)
	})
}

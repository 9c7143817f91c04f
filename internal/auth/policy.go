package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/provisioning/equipment":
		return RoleAdmin, true
	case path == "/api/v1/locations/bind":
		return RoleManager, true
	case path == "/api/v1/restaurants" || strings.HasPrefix(path, "/api/v1/restaurants/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleManager, true
	case path == "/api/v1/firmware/updates":
		if method == http.MethodPost {
			return RoleManager, true
		}
		return RoleViewer, true
	case path == "/api/v1/equipment" || strings.HasPrefix(path, "/api/v1/equipment/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleManager, true
	case path == "/api/v1/alerts/stream":
		return RoleViewer, true
	case path == "/api/v1/maintenance":
		if method == http.MethodPost {
			return RoleStaff, true
		}
		return RoleViewer, true
	case strings.HasPrefix(path, "/api/v1/maintenance/") && method == http.MethodPost:
		return RoleStaff, true
	case strings.HasPrefix(path, "/api/v1/sop/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleManager, true
	case strings.HasPrefix(path, "/api/v1/training/"):
		return RoleStaff, true
	case path == "/api/v1/exports/training.xlsx":
		return RoleManager, true
	case path == "/api/v1/franchises" || strings.HasPrefix(path, "/api/v1/franchises/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleAdmin, true
	case path == "/api/v1/royalties/calculate":
		return RoleManager, true
	case path == "/api/v1/statements/generate":
		return RoleAdmin, true
	case path == "/api/v1/statements":
		return RoleViewer, true
	case strings.HasPrefix(path, "/api/v1/statements/"):
		if method == http.MethodGet {
			if strings.Contains(path, "/export.") {
				return RoleAdmin, true
			}
			return RoleViewer, true
		}
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/reports/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleAdmin, true
	case path == "/api/v1/audit":
		return RoleAdmin, true
	case path == "/api/v1/auth/me" || path == "/api/v1/auth/logout":
		return RoleViewer, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleViewer, true
		}
		return RoleManager, true
	}
	return "", false
}

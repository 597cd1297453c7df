package vectorstore

import (
	"fmt"
	"regexp"
)

// GlobalScopeKey identifies global (tenant-less) content in watermark
// and scope keys.
const GlobalScopeKey = "GLOBAL"

const maxTenantIDLength = 255

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateTenantID checks tenant-ID shape. The empty string is the
// explicit global scope and is valid; anything else must be at most 255
// characters of [A-Za-z0-9_-].
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return nil
	}
	if len(tenantID) > maxTenantIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidTenant, maxTenantIDLength)
	}
	if !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidTenant, tenantID)
	}
	return nil
}

// ScopeKey maps a tenant ID to its watermark scope key.
func ScopeKey(tenantID string) string {
	if tenantID == "" {
		return GlobalScopeKey
	}
	return tenantID
}

// IsGlobal reports whether the tenant ID addresses global content.
func IsGlobal(tenantID string) bool { return tenantID == "" }

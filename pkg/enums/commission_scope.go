package enums

import "fmt"

// CommissionScope is the granularity at which a platform fee rule applies.
// Resolution priority is store > category > global.
type CommissionScope string

const (
	CommissionScopeGlobal   CommissionScope = "global"
	CommissionScopeCategory CommissionScope = "category"
	CommissionScopeStore    CommissionScope = "store"
)

var validCommissionScopes = []CommissionScope{
	CommissionScopeGlobal,
	CommissionScopeCategory,
	CommissionScopeStore,
}

// String implements fmt.Stringer.
func (c CommissionScope) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CommissionScope.
func (c CommissionScope) IsValid() bool {
	for _, candidate := range validCommissionScopes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionScope converts raw input into a CommissionScope.
func ParseCommissionScope(value string) (CommissionScope, error) {
	for _, candidate := range validCommissionScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission scope %q", value)
}

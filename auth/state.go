package auth

import (
	"github.com/vocacrm/vocacrm-go/tenants"
	"github.com/vocacrm/vocacrm-go/token"
)

type State int

const (
	Uninitialized State = iota
	Checking
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Snapshot is the observable authentication state.
type Snapshot struct {
	State           State
	User            *token.Claims
	IsAuthenticated bool
	Loading         bool
	CurrentTenant   *tenants.Tenant
	Tenants         []*tenants.Tenant
}

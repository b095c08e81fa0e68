package authz

import "errors"

// Kind discriminates expected authorization outcomes at the core boundary.
type Kind string

const (
	// KindAuthenticationRequired means no valid identity was presented.
	KindAuthenticationRequired Kind = "AUTHENTICATION_REQUIRED"
	// KindAccessDenied means the identity is known but the tenant/role/
	// ownership rules forbid the action.
	KindAccessDenied Kind = "ACCESS_DENIED"
)

// Denial is the typed failure returned by the scope guards. It is an
// expected, user-facing outcome; callers translate it outward (401/403),
// they never log it as a server error.
type Denial struct {
	Kind   Kind
	Reason string
}

func (d *Denial) Error() string {
	return string(d.Kind) + ": " + d.Reason
}

func denied(reason string) *Denial {
	return &Denial{Kind: KindAccessDenied, Reason: reason}
}

// Programmer errors: these indicate a bug in the calling code, not a
// user-facing denial. The boundary maps them to 500.
var (
	// ErrResourceTenantMissing is returned when a resource that must be
	// tenant-partitioned carries no tenant ID.
	ErrResourceTenantMissing = errors.New("authz: resource has no tenant id")
	// ErrUnknownRole is returned when a context carries a role outside the
	// closed enum. Resolution should have rejected it already.
	ErrUnknownRole = errors.New("authz: role outside known enum")
	// ErrInvestorScopeMissing is returned when agent memo access is checked
	// without the mediating investor projection.
	ErrInvestorScopeMissing = errors.New("authz: investor scope required for agent memo access")
)

// AsDenial unwraps err into a *Denial if it is one.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

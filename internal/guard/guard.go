// Package guard decides whether a navigation target may be shown for the
// current session or where the user should be sent instead. The decision is
// a convenience for the user; the API enforces access on its own.
package guard

// Entry points a decision can redirect to
const (
	LoginPath     = "/login"
	ProfilePath   = "/profile"
	DashboardPath = "/dashboard"
)

// Policy is the capability a target requires
type Policy int

const (
	// Authenticated requires any live session
	Authenticated Policy = iota + 1
	// Admin requires a live session with the admin role
	Admin
)

func (p Policy) String() string {
	switch p {
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a policy name back to a Policy
func ParsePolicy(name string) (Policy, bool) {
	switch name {
	case "authenticated":
		return Authenticated, true
	case "admin":
		return Admin, true
	default:
		return 0, false
	}
}

// Checker answers the two questions a guard asks. It is consulted on every
// evaluation; nothing is cached.
type Checker interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

// Decision is the outcome of one evaluation
type Decision struct {
	Allow    bool
	Redirect string // set when Allow is false
}

// Evaluate applies policy p to the session c describes
func Evaluate(p Policy, c Checker) Decision {
	if !c.IsAuthenticated() {
		return Decision{Redirect: LoginPath}
	}

	switch p {
	case Authenticated:
		return Decision{Allow: true}
	case Admin:
		if !c.IsAdmin() {
			// Signed in but not allowed here: send to the user's own page,
			// not back to login
			return Decision{Redirect: ProfilePath}
		}
		return Decision{Allow: true}
	default:
		return Decision{Redirect: LoginPath}
	}
}

// Landing returns where the root and unknown routes lead
func Landing(c Checker) string {
	if !c.IsAuthenticated() {
		return LoginPath
	}
	if c.IsAdmin() {
		return DashboardPath
	}
	return ProfilePath
}

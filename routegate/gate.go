// Package routegate decides whether a navigation target is reachable given
// the current session state. Decisions are pure values; the host router
// applies them.
package routegate

import (
	"strings"

	"github.com/lexlink/client-go/identity"
	"github.com/lexlink/client-go/session"
)

// DecisionKind classifies a gate outcome.
type DecisionKind int

const (
	// Allow renders the requested content.
	Allow DecisionKind = iota
	// Loading renders a neutral state: the session is still initializing
	// and the gate must not flash the wrong UI.
	Loading
	// Redirect sends the user to Decision.To instead.
	Redirect
)

// Decision is a gate outcome. RememberTarget, when non-empty, is the denied
// path the host should record (Controller.RememberTarget) so a successful
// login can return to it.
type Decision struct {
	Kind           DecisionKind
	To             string
	RememberTarget string
}

func allow() Decision {
	return Decision{Kind: Allow}
}

func redirect(to string) Decision {
	return Decision{Kind: Redirect, To: to}
}

// Public gates the public entry pages. Content always renders unless the user
// is already authenticated, in which case the redirect-away rule applies and
// they land in their own role area.
func Public(s session.Snapshot) Decision {
	if s.Authenticated() {
		return redirect(s.Identity.LandingPath())
	}
	return allow()
}

// Protected gates a role-restricted area. An unauthenticated user goes to
// login with the denied target remembered. An authenticated user whose roles
// do not intersect the allowed set is in the wrong area, not forbidden: they
// are sent to their own landing page.
func Protected(s session.Snapshot, requested string, allowed ...identity.RoleType) Decision {
	switch s.Status {
	case session.StatusUninitialized, session.StatusInitializing:
		return Decision{Kind: Loading}
	case session.StatusUnauthenticated:
		return Decision{Kind: Redirect, To: session.PathLogin, RememberTarget: requested}
	}

	if s.Identity.HasAnyRole(allowed...) {
		return allow()
	}
	return redirect(s.Identity.LandingPath())
}

// ResolveUnmatched handles paths outside the route surface: authenticated
// users with a role go home, everyone else goes to signup.
func ResolveUnmatched(s session.Snapshot) Decision {
	if s.Authenticated() && len(s.Roles()) > 0 {
		return redirect(s.Identity.LandingPath())
	}
	return redirect(session.PathSignup)
}

// Resolve applies the whole route surface to a path: public entry pages, the
// per-role areas, and the unmatched fallback.
func Resolve(s session.Snapshot, path string) Decision {
	switch path {
	case session.PathHome, session.PathLogin, session.PathSignup:
		return Public(s)
	case session.PathForgotPassword:
		return allow()
	}

	for _, role := range []identity.RoleType{identity.RoleClient, identity.RoleLawyer} {
		area := "/" + string(role)
		if path == area || strings.HasPrefix(path, area+"/") {
			return Protected(s, path, role)
		}
	}

	return ResolveUnmatched(s)
}

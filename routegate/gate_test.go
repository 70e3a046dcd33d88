package routegate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexlink/client-go/identity"
	"github.com/lexlink/client-go/routegate"
	"github.com/lexlink/client-go/session"
)

func authenticated(roles ...identity.RoleType) session.Snapshot {
	return session.Snapshot{
		Status:      session.StatusAuthenticated,
		Credentials: identity.Credentials{AccessToken: "a", RefreshToken: "r"},
		Identity:    &identity.Identity{ID: "u1", Roles: roles},
	}
}

func unauthenticated() session.Snapshot {
	return session.Snapshot{Status: session.StatusUnauthenticated}
}

func TestPublic(t *testing.T) {
	t.Run("renders for visitors", func(t *testing.T) {
		require.Equal(t, routegate.Allow, routegate.Public(unauthenticated()).Kind)
	})

	t.Run("redirects authenticated users to their area", func(t *testing.T) {
		decision := routegate.Public(authenticated(identity.RoleLawyer))
		require.Equal(t, routegate.Redirect, decision.Kind)
		require.Equal(t, "/lawyer", decision.To)
	})
}

func TestProtected(t *testing.T) {
	t.Run("initializing renders neutral loading state", func(t *testing.T) {
		snap := session.Snapshot{Status: session.StatusInitializing}
		require.Equal(t, routegate.Loading, routegate.Protected(snap, "/lawyer", identity.RoleLawyer).Kind)
	})

	t.Run("uninitialized renders neutral loading state", func(t *testing.T) {
		snap := session.Snapshot{Status: session.StatusUninitialized}
		require.Equal(t, routegate.Loading, routegate.Protected(snap, "/lawyer", identity.RoleLawyer).Kind)
	})

	t.Run("unauthenticated goes to login remembering the target", func(t *testing.T) {
		decision := routegate.Protected(unauthenticated(), "/lawyer/assigned-cases", identity.RoleLawyer)
		require.Equal(t, routegate.Redirect, decision.Kind)
		require.Equal(t, session.PathLogin, decision.To)
		require.Equal(t, "/lawyer/assigned-cases", decision.RememberTarget)
	})

	t.Run("matching role renders", func(t *testing.T) {
		decision := routegate.Protected(authenticated(identity.RoleLawyer), "/lawyer", identity.RoleLawyer)
		require.Equal(t, routegate.Allow, decision.Kind)
	})

	t.Run("role mismatch goes to own area, not an error", func(t *testing.T) {
		decision := routegate.Protected(authenticated(identity.RoleClient), "/lawyer", identity.RoleLawyer)
		require.Equal(t, routegate.Redirect, decision.Kind)
		require.Equal(t, "/client", decision.To)
		require.Empty(t, decision.RememberTarget)
	})
}

func TestResolveUnmatched(t *testing.T) {
	t.Run("authenticated with a role goes home", func(t *testing.T) {
		decision := routegate.ResolveUnmatched(authenticated(identity.RoleClient))
		require.Equal(t, routegate.Redirect, decision.Kind)
		require.Equal(t, "/client", decision.To)
	})

	t.Run("visitors go to signup", func(t *testing.T) {
		decision := routegate.ResolveUnmatched(unauthenticated())
		require.Equal(t, routegate.Redirect, decision.Kind)
		require.Equal(t, session.PathSignup, decision.To)
	})
}

func TestResolve(t *testing.T) {
	lawyer := authenticated(identity.RoleLawyer)

	tests := []struct {
		name string
		snap session.Snapshot
		path string
		kind routegate.DecisionKind
		to   string
	}{
		{"authenticated on login page", lawyer, "/login", routegate.Redirect, "/lawyer"},
		{"visitor on login page", unauthenticated(), "/login", routegate.Allow, ""},
		{"forgot password is public", unauthenticated(), "/forgot-password", routegate.Allow, ""},
		{"lawyer in lawyer area", lawyer, "/lawyer/calendar", routegate.Allow, ""},
		{"lawyer in client area", lawyer, "/client/cases", routegate.Redirect, "/lawyer"},
		{"visitor in client area", unauthenticated(), "/client", routegate.Redirect, "/login"},
		{"unmatched path while authenticated", lawyer, "/nowhere", routegate.Redirect, "/lawyer"},
		{"unmatched path as visitor", unauthenticated(), "/nowhere", routegate.Redirect, "/signup"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := routegate.Resolve(tc.snap, tc.path)
			require.Equal(t, tc.kind, decision.Kind)
			if tc.to != "" {
				require.Equal(t, tc.to, decision.To)
			}
		})
	}
}

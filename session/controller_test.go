package session_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexlink/client-go/apiclient"
	"github.com/lexlink/client-go/credfake"
	"github.com/lexlink/client-go/identity"
	"github.com/lexlink/client-go/session"
	"github.com/lexlink/client-go/store"
	"github.com/lexlink/client-go/store/storefakes"
)

const (
	lawyerEmail  = "ada.cohen@example.com"
	lawyerPass   = "Sup3rSecret!"
	lawyerUserID = "lawyer-1"
)

// recordingNav captures navigations the controller requests.
type recordingNav struct {
	lock   sync.Mutex
	visits []string
}

func (n *recordingNav) Navigate(to string, replace bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.visits = append(n.visits, to)
}

func (n *recordingNav) last() string {
	n.lock.Lock()
	defer n.lock.Unlock()
	if len(n.visits) == 0 {
		return ""
	}
	return n.visits[len(n.visits)-1]
}

type controllerFixture struct {
	service      *credfake.Service
	server       *httptest.Server
	sessionStore *storefakes.FakeStore
	client       *apiclient.Client
	nav          *recordingNav
	controller   *session.Controller
	lawyer       *identity.Identity
}

func newControllerFixture(t *testing.T, options ...credfake.ServiceOption) *controllerFixture {
	t.Helper()

	f := &controllerFixture{
		service:      credfake.New("test-secret", options...),
		sessionStore: storefakes.NewFakeStore(),
		nav:          &recordingNav{},
		lawyer: &identity.Identity{
			ID:    lawyerUserID,
			Email: lawyerEmail,
			Roles: []identity.RoleType{identity.RoleLawyer},
		},
	}
	f.server = httptest.NewServer(f.service.Handler())
	t.Cleanup(f.server.Close)

	require.NoError(t, f.service.AddUser(lawyerPass, f.lawyer))

	f.client = apiclient.New(f.server.URL, f.sessionStore)

	ctl, err := session.NewController(f.client, f.sessionStore, f.nav)
	require.NoError(t, err)
	f.controller = ctl
	return f
}

// seedStoredSession persists a full session record, as a previous run of the
// client would have.
func (f *controllerFixture) seedStoredSession(t *testing.T, accessToken, refreshToken string) {
	t.Helper()
	payload, err := f.lawyer.Marshal()
	require.NoError(t, err)
	f.sessionStore.Seed(map[string]string{
		store.KeyAccessToken:  accessToken,
		store.KeyRefreshToken: refreshToken,
		store.KeyUser:         payload,
	})
}

// requireCoupled asserts the status/data coupling invariant on a snapshot.
func requireCoupled(t *testing.T, snap session.Snapshot) {
	t.Helper()
	if snap.Status == session.StatusAuthenticated {
		require.True(t, snap.Credentials.Valid())
		require.NotNil(t, snap.Identity)
	} else {
		require.False(t, snap.Credentials.Valid())
		require.Nil(t, snap.Identity)
	}
}

func TestController_InitializeNoStoredSession(t *testing.T) {
	f := newControllerFixture(t)

	require.NoError(t, f.controller.Initialize(context.Background()))

	snap := f.controller.Snapshot()
	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	requireCoupled(t, snap)
	require.Zero(t, f.service.RefreshCalls())
	require.Empty(t, f.nav.last())
}

func TestController_InitializeStoredSession(t *testing.T) {
	f := newControllerFixture(t)
	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	f.seedStoredSession(t, creds.AccessToken, creds.RefreshToken)

	require.NoError(t, f.controller.Initialize(context.Background()))

	snap := f.controller.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	requireCoupled(t, snap)
	require.Equal(t, lawyerEmail, snap.Identity.Email)
}

func TestController_InitializeExpiredAccessToken(t *testing.T) {
	f := newControllerFixture(t)
	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	f.seedStoredSession(t, "stale-access-token", creds.RefreshToken)

	require.NoError(t, f.controller.Initialize(context.Background()))

	// The probe tripped the refresh protocol; session stays authenticated
	// with a renewed token.
	snap := f.controller.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	requireCoupled(t, snap)
	require.Equal(t, 1, f.service.RefreshCalls())

	stored, ok := f.sessionStore.Get(store.KeyAccessToken)
	require.True(t, ok)
	require.NotEqual(t, "stale-access-token", stored)
}

func TestController_InitializeDeadRefreshToken(t *testing.T) {
	f := newControllerFixture(t)
	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	f.service.RevokeRefreshToken(creds.RefreshToken)
	f.seedStoredSession(t, "stale-access-token", creds.RefreshToken)

	require.NoError(t, f.controller.Initialize(context.Background()))

	snap := f.controller.Snapshot()
	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	requireCoupled(t, snap)
	require.Equal(t, session.PathLogin, f.nav.last())

	_, ok = f.sessionStore.Get(store.KeyAccessToken)
	require.False(t, ok)
}

func TestController_InitializeFailsOpenOnTransientError(t *testing.T) {
	f := newControllerFixture(t)
	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	f.seedStoredSession(t, creds.AccessToken, creds.RefreshToken)

	// Probe hits a dead server: unrelated transient error.
	f.server.Close()

	require.NoError(t, f.controller.Initialize(context.Background()))

	snap := f.controller.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	requireCoupled(t, snap)
}

func TestController_InitializeCorruptIdentityRecord(t *testing.T) {
	f := newControllerFixture(t)
	f.sessionStore.Seed(map[string]string{
		store.KeyAccessToken:  "access",
		store.KeyRefreshToken: "refresh",
		store.KeyUser:         "{broken",
	})

	err := f.controller.Initialize(context.Background())
	require.ErrorIs(t, err, session.CorruptStoredStateErr)

	snap := f.controller.Snapshot()
	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	requireCoupled(t, snap)
	_, ok := f.sessionStore.Get(store.KeyAccessToken)
	require.False(t, ok)
}

func TestController_Login(t *testing.T) {
	f := newControllerFixture(t)
	require.NoError(t, f.controller.Initialize(context.Background()))

	creds, user, err := f.client.Login(context.Background(), apiclient.LoginRequest{
		Email:    lawyerEmail,
		Password: lawyerPass,
	})
	require.NoError(t, err)

	require.NoError(t, f.controller.Login(creds, user))

	snap := f.controller.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	requireCoupled(t, snap)
	require.Equal(t, "/lawyer", f.nav.last())

	stored, ok := f.sessionStore.Get(store.KeyAccessToken)
	require.True(t, ok)
	require.Equal(t, creds.AccessToken, stored)
}

func TestController_LoginReturnsToRememberedTarget(t *testing.T) {
	f := newControllerFixture(t)
	f.controller.RememberTarget("/lawyer/assigned-cases")

	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	require.NoError(t, f.controller.Login(creds, f.lawyer))
	require.Equal(t, "/lawyer/assigned-cases", f.nav.last())

	// The target is one-shot: a second login lands on the default page.
	require.NoError(t, f.controller.Login(creds, f.lawyer))
	require.Equal(t, "/lawyer", f.nav.last())
}

func TestController_LoginRejectsIncompleteState(t *testing.T) {
	f := newControllerFixture(t)

	err := f.controller.Login(identity.Credentials{AccessToken: "a"}, f.lawyer)
	require.ErrorIs(t, err, session.IncompleteLoginErr)

	err = f.controller.Login(identity.Credentials{AccessToken: "a", RefreshToken: "r"}, nil)
	require.ErrorIs(t, err, session.IncompleteLoginErr)

	requireCoupled(t, f.controller.Snapshot())
}

func TestController_Logout(t *testing.T) {
	f := newControllerFixture(t)
	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	require.NoError(t, f.controller.Login(creds, f.lawyer))

	f.controller.Logout(context.Background())

	snap := f.controller.Snapshot()
	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	requireCoupled(t, snap)
	require.Equal(t, session.PathLogin, f.nav.last())
	require.Zero(t, f.sessionStore.Len())
}

func TestController_LogoutIsIdempotent(t *testing.T) {
	f := newControllerFixture(t)
	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	require.NoError(t, f.controller.Login(creds, f.lawyer))

	f.controller.Logout(context.Background())
	firstLen := f.sessionStore.Len()
	f.controller.Logout(context.Background())

	require.Equal(t, firstLen, f.sessionStore.Len())
	require.Equal(t, session.StatusUnauthenticated, f.controller.Snapshot().Status)
}

func TestController_LogoutProceedsWhenEndpointFails(t *testing.T) {
	f := newControllerFixture(t, credfake.WithFailingLogout())
	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	require.NoError(t, f.controller.Login(creds, f.lawyer))

	f.controller.Logout(context.Background())

	// Teardown is unconditional even though the endpoint 500ed.
	require.Equal(t, session.StatusUnauthenticated, f.controller.Snapshot().Status)
	_, ok = f.sessionStore.Get(store.KeyAccessToken)
	require.False(t, ok)
	require.Equal(t, session.PathLogin, f.nav.last())
}

func TestController_RedirectAwayRule(t *testing.T) {
	f := newControllerFixture(t)
	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	require.NoError(t, f.controller.Login(creds, f.lawyer))

	f.controller.EvaluateLocation(session.PathLogin)
	require.Equal(t, "/lawyer", f.nav.last())

	f.controller.EvaluateLocation(session.PathHome)
	require.Equal(t, "/lawyer", f.nav.last())

	// Non-public locations are left alone.
	before := len(f.nav.visits)
	f.controller.EvaluateLocation("/lawyer/calendar")
	require.Len(t, f.nav.visits, before)
}

func TestController_IngestRedirect(t *testing.T) {
	f := newControllerFixture(t)

	t.Run("well-formed redirect authenticates", func(t *testing.T) {
		payload, err := f.lawyer.Marshal()
		require.NoError(t, err)
		u := redirectURL(t, "redirect-access", "redirect-refresh", payload)

		handled, err := f.controller.IngestRedirect(u)
		require.NoError(t, err)
		require.True(t, handled)

		snap := f.controller.Snapshot()
		require.Equal(t, session.StatusAuthenticated, snap.Status)
		requireCoupled(t, snap)
		require.Equal(t, "/lawyer", f.nav.last())

		stored, ok := f.sessionStore.Get(store.KeyAccessToken)
		require.True(t, ok)
		require.Equal(t, "redirect-access", stored)
	})

	t.Run("malformed payload clears state without crashing", func(t *testing.T) {
		u := redirectURL(t, "redirect-access", "redirect-refresh", "{broken")

		handled, err := f.controller.IngestRedirect(u)
		require.True(t, handled)
		require.ErrorIs(t, err, session.MalformedRedirectErr)

		snap := f.controller.Snapshot()
		require.Equal(t, session.StatusUnauthenticated, snap.Status)
		requireCoupled(t, snap)
		_, ok := f.sessionStore.Get(store.KeyAccessToken)
		require.False(t, ok)
	})

	t.Run("ordinary navigation is a no-op", func(t *testing.T) {
		u, err := url.Parse("https://app.example.com/lawyer")
		require.NoError(t, err)
		handled, err := f.controller.IngestRedirect(u)
		require.NoError(t, err)
		require.False(t, handled)
	})
}

func TestController_ForcedInvalidationDuringUse(t *testing.T) {
	f := newControllerFixture(t)
	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	require.NoError(t, f.controller.Login(creds, f.lawyer))

	// The server forgets the refresh token and the access token goes
	// stale: the next gated request forces T5.
	f.service.RevokeRefreshToken(creds.RefreshToken)
	require.NoError(t, f.sessionStore.Set(store.KeyAccessToken, "stale-access-token"))

	_, err := f.client.Me(context.Background())
	require.Error(t, err)
	require.True(t, apiclient.IsUnauthorized(err))

	snap := f.controller.Snapshot()
	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	requireCoupled(t, snap)
	require.Equal(t, session.PathLogin, f.nav.last())
	require.Zero(t, f.sessionStore.Len())
}

func TestController_Subscribe(t *testing.T) {
	f := newControllerFixture(t)
	updates, cancel := f.controller.Subscribe()
	defer cancel()

	require.NoError(t, f.controller.Initialize(context.Background()))

	var last session.Snapshot
	for {
		select {
		case snap := <-updates:
			last = snap
			requireCoupled(t, snap)
			if snap.Status == session.StatusUnauthenticated {
				require.Equal(t, session.StatusUnauthenticated, last.Status)
				return
			}
		default:
			t.Fatalf("expected a terminal snapshot, last seen %q", last.Status)
		}
	}
}

func TestController_TokenSource(t *testing.T) {
	f := newControllerFixture(t)

	_, err := f.controller.TokenSource().Token()
	require.Error(t, err)

	creds, ok := f.service.IssueCredentials(lawyerEmail)
	require.True(t, ok)
	require.NoError(t, f.controller.Login(creds, f.lawyer))

	tok, err := f.controller.TokenSource().Token()
	require.NoError(t, err)
	require.Equal(t, creds.AccessToken, tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
}

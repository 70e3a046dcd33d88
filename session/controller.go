// Package session owns the client's authenticated state: who is logged in,
// with what credentials, and how that state changes across startup, login,
// logout, external-provider redirects, and forced invalidation.
//
// The Controller is the single writer of identity and role state. Route gates
// and pages read snapshots or subscribe to transitions; they never mutate the
// session directly.
package session

import (
	"context"
	"net/url"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/lexlink/client-go/apiclient"
	"github.com/lexlink/client-go/identity"
	"github.com/lexlink/client-go/store"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusUninitialized   Status = "uninitialized"
	StatusInitializing    Status = "initializing"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// Snapshot is a read-only view of the session at one instant. Credentials and
// Identity are set if and only if Status is StatusAuthenticated.
type Snapshot struct {
	Status      Status
	Credentials identity.Credentials
	Identity    *identity.Identity
}

// Authenticated reports whether the snapshot carries a full authenticated
// session.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Roles returns the identity's roles, nil when unauthenticated.
func (s Snapshot) Roles() []identity.RoleType {
	if s.Identity == nil {
		return nil
	}
	return s.Identity.Roles
}

// Controller orchestrates session initialization, login, logout, and forced
// invalidation, and exposes the current identity to the rest of the
// application.
type Controller struct {
	api          *apiclient.Client
	sessionStore store.Store
	scratch      store.Store
	nav          Navigator

	lock        sync.RWMutex
	status      Status
	creds       identity.Credentials
	user        *identity.Identity
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithScratchStore overrides the session-scoped store holding the one-shot
// post-login redirect target.
func WithScratchStore(s store.Store) ControllerOption {
	return func(c *Controller) {
		c.scratch = s
	}
}

// NewController wires a Controller to its API client, durable store, and host
// navigator. It registers itself as the client's invalidation hook so a dead
// refresh token forces the logged-out state.
func NewController(api *apiclient.Client, sessionStore store.Store, nav Navigator, options ...ControllerOption) (*Controller, error) {
	if api == nil {
		return nil, errors.New("[NewController] api client is required")
	}
	if sessionStore == nil {
		return nil, errors.New("[NewController] session store is required")
	}
	if nav == nil {
		return nil, errors.New("[NewController] navigator is required")
	}

	c := &Controller{
		api:          api,
		sessionStore: sessionStore,
		scratch:      store.NewMemStore(),
		nav:          nav,
		status:       StatusUninitialized,
		subscribers:  make(map[int]chan Snapshot),
	}

	for _, opt := range options {
		opt(c)
	}

	api.OnInvalidate(c.invalidate)
	return c, nil
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return Snapshot{Status: c.status, Credentials: c.creds, Identity: c.user}
}

// Subscribe returns a channel delivering a snapshot after every transition,
// and a cancel function. Slow subscribers miss intermediate snapshots rather
// than blocking the controller.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.lock.Lock()
	defer c.lock.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan Snapshot, 1)
	c.subscribers[id] = ch

	cancel := func() {
		c.lock.Lock()
		defer c.lock.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Initialize reconciles the durable store with in-memory state at application
// start. A complete persisted record is trusted optimistically and verified
// by probing the identity-confirmation endpoint; no record means
// unauthenticated with no network call.
func (c *Controller) Initialize(ctx context.Context) error {
	c.setState(StatusInitializing, identity.Credentials{}, nil)

	accessToken, _ := c.sessionStore.Get(store.KeyAccessToken)
	refreshToken, _ := c.sessionStore.Get(store.KeyRefreshToken)
	userPayload, _ := c.sessionStore.Get(store.KeyUser)

	if accessToken == "" || refreshToken == "" || userPayload == "" {
		c.setState(StatusUnauthenticated, identity.Credentials{}, nil)
		return nil
	}

	user, err := identity.Unmarshal(userPayload)
	if err != nil {
		// The persisted record is unusable; drop it.
		if clearErr := c.sessionStore.Clear(); clearErr != nil {
			log.Warn().Err(clearErr).Msg("clearing corrupt session record")
		}
		c.setState(StatusUnauthenticated, identity.Credentials{}, nil)
		return errors.Wrap(CorruptStoredStateErr, "[Controller.Initialize]")
	}

	// Trust the stored record, then verify.
	creds := identity.Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
	c.setState(StatusAuthenticated, creds, user)

	probed, err := c.api.Me(ctx)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			// The refresh protocol already resolved this probe: either it
			// renewed the token, or it cleared the store and our
			// invalidation hook ran. Whatever it left behind is final.
			c.reconcileAfterProbe()
			return nil
		}
		// Unrelated transient failure: keep the optimistic state.
		log.Warn().Err(err).Msg("identity probe failed, keeping stored session")
		return nil
	}

	// Refresh the cached identity with the server's copy.
	if payload, marshalErr := probed.Marshal(); marshalErr == nil {
		if setErr := c.sessionStore.Set(store.KeyUser, payload); setErr != nil {
			log.Warn().Err(setErr).Msg("persisting probed identity")
		}
	}
	c.setState(StatusAuthenticated, c.currentCredentials(), probed)
	return nil
}

// Login installs a verified credential pair and identity (already obtained
// from a successful login or signup exchange), persists them, and navigates
// to the remembered destination or the identity's landing page.
func (c *Controller) Login(creds identity.Credentials, user *identity.Identity) error {
	if !creds.Valid() || user == nil {
		return errors.Wrap(IncompleteLoginErr, "[Controller.Login]")
	}

	if err := c.persist(creds, user); err != nil {
		return errors.Wrap(err, "[Controller.Login]")
	}
	c.setState(StatusAuthenticated, creds, user)

	target, ok := store.TakeOnce(c.scratch, store.KeyRedirectTarget)
	if !ok || target == "" {
		target = user.LandingPath()
	}
	c.nav.Navigate(target, true)
	return nil
}

// Logout calls the logout endpoint best-effort, then unconditionally clears
// persisted state and navigates to the login page. It is idempotent.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.api.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("logout call failed, tearing down locally anyway")
	}
	c.teardown()
}

// IngestRedirect inspects a navigation URL for external-provider credentials
// and folds them into the session. It returns true when the URL carried a
// redirect (well-formed or not).
func (c *Controller) IngestRedirect(u *url.URL) (bool, error) {
	result := ParseRedirect(u)
	switch result.Outcome {
	case RedirectNotPresent:
		return false, nil

	case RedirectMalformed:
		// Corrupt redirect: drop any partial session state, do not crash.
		if err := c.sessionStore.Clear(); err != nil {
			log.Warn().Err(err).Msg("clearing session after malformed redirect")
		}
		c.setState(StatusUnauthenticated, identity.Credentials{}, nil)
		return true, errors.Wrap(MalformedRedirectErr, "[Controller.IngestRedirect]")

	default:
		if err := c.persist(result.Credentials, result.Identity); err != nil {
			return true, errors.Wrap(err, "[Controller.IngestRedirect]")
		}
		c.setState(StatusAuthenticated, result.Credentials, result.Identity)

		target, ok := store.TakeOnce(c.scratch, store.KeyRedirectTarget)
		if !ok || target == "" {
			target = result.Identity.LandingPath()
		}
		c.nav.Navigate(target, true)
		return true, nil
	}
}

// EvaluateLocation applies the redirect-away rule: an authenticated user on a
// public entry page is sent to their role's landing page. Hosts call this on
// every location change.
func (c *Controller) EvaluateLocation(path string) {
	snap := c.Snapshot()
	if !snap.Authenticated() {
		return
	}
	if _, ok := PublicEntryPaths[path]; !ok {
		return
	}
	c.nav.Navigate(snap.Identity.LandingPath(), true)
}

// RememberTarget records the one-shot destination to return to after the next
// successful login.
func (c *Controller) RememberTarget(to string) {
	if to == "" {
		return
	}
	if err := c.scratch.Set(store.KeyRedirectTarget, to); err != nil {
		log.Warn().Err(err).Msg("remembering redirect target")
	}
}

// invalidate is the refresh protocol's terminal hook: the server already
// rejected the refresh token and the store is cleared, so only local state
// and navigation remain.
func (c *Controller) invalidate() {
	c.setState(StatusUnauthenticated, identity.Credentials{}, nil)
	c.nav.Navigate(PathLogin, true)
}

func (c *Controller) teardown() {
	if err := c.sessionStore.Clear(); err != nil {
		log.Warn().Err(err).Msg("clearing session store on logout")
	}
	c.setState(StatusUnauthenticated, identity.Credentials{}, nil)
	c.nav.Navigate(PathLogin, false)
}

func (c *Controller) persist(creds identity.Credentials, user *identity.Identity) error {
	payload, err := user.Marshal()
	if err != nil {
		return errors.Wrap(err, "persist")
	}
	if err := c.sessionStore.Set(store.KeyAccessToken, creds.AccessToken); err != nil {
		return errors.Wrap(err, "persist access token")
	}
	if err := c.sessionStore.Set(store.KeyRefreshToken, creds.RefreshToken); err != nil {
		return errors.Wrap(err, "persist refresh token")
	}
	return errors.Wrap(c.sessionStore.Set(store.KeyUser, payload), "persist identity")
}

// reconcileAfterProbe aligns in-memory state with whatever the refresh
// protocol left in the store after an authorization failure on the startup
// probe.
func (c *Controller) reconcileAfterProbe() {
	accessToken, _ := c.sessionStore.Get(store.KeyAccessToken)
	refreshToken, _ := c.sessionStore.Get(store.KeyRefreshToken)
	if accessToken == "" || refreshToken == "" {
		c.setState(StatusUnauthenticated, identity.Credentials{}, nil)
		return
	}
	c.lock.Lock()
	c.creds = identity.Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
	c.lock.Unlock()
	c.notify()
}

func (c *Controller) currentCredentials() identity.Credentials {
	accessToken, _ := c.sessionStore.Get(store.KeyAccessToken)
	refreshToken, _ := c.sessionStore.Get(store.KeyRefreshToken)
	return identity.Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
}

// setState is the single mutation point, keeping the status/data coupling
// invariant: authenticated state always carries both credentials and an
// identity, every other state carries neither.
func (c *Controller) setState(status Status, creds identity.Credentials, user *identity.Identity) {
	if status != StatusAuthenticated {
		creds = identity.Credentials{}
		user = nil
	}

	c.lock.Lock()
	c.status = status
	c.creds = creds
	c.user = user
	c.lock.Unlock()

	c.notify()
}

func (c *Controller) notify() {
	snap := c.Snapshot()
	c.lock.RLock()
	defer c.lock.RUnlock()
	for _, sub := range c.subscribers {
		select {
		case sub <- snap:
		default:
			// Drop the stale snapshot so a fresh one can land.
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- snap:
			default:
			}
		}
	}
}

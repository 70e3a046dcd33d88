package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/lexlink/client-go/store"
)

// refreshTransport is the response phase of the transport chain. On an
// authorization failure it attempts exactly one renewal for the failing
// request and replays it with the new access token. Renewals for concurrently
// failing requests are coalesced: the first failure performs the renewal call,
// the rest pick up the token it stored.
//
// A rejected refresh token is terminal for the session: the store is cleared
// and onInvalidate runs, so the owning controller can force its logged-out
// state.
type refreshTransport struct {
	next         http.RoundTripper
	baseURL      string
	sessionStore store.Store
	onInvalidate func()

	// renewLock serialises renewal calls so one expiry event issues one
	// renewal no matter how many requests hit it.
	renewLock sync.Mutex
}

func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	failedToken := bearerToken(req)
	if failedToken == "" {
		// Unauthenticated call rejected; nothing to renew.
		return resp, nil
	}

	if req.Body != nil && req.GetBody == nil {
		// Can't replay the request, so surface the failure as-is.
		return resp, nil
	}

	newToken, renewErr := t.renew(req.Context(), failedToken)
	if renewErr != nil {
		drainAndClose(resp)
		return nil, errors.Wrap(renewErr, "[refreshTransport.RoundTrip] renew")
	}
	drainAndClose(resp)

	replay := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[refreshTransport.RoundTrip] GetBody")
		}
		replay.Body = body
	}
	replay.Header.Set(headerAuthorization, bearerPrefix+newToken)

	// Exactly one replay: whatever it returns is the caller's outcome,
	// including a second authorization failure.
	return t.next.RoundTrip(replay)
}

// renew obtains a fresh access token after failedToken was rejected. Requests
// that lost the renewal race return the token the winner stored.
func (t *refreshTransport) renew(ctx context.Context, failedToken string) (string, error) {
	t.renewLock.Lock()
	defer t.renewLock.Unlock()

	// Another request may have completed the renewal while this one waited.
	if current, ok := t.sessionStore.Get(store.KeyAccessToken); ok && current != "" && current != failedToken {
		return current, nil
	}

	refreshToken, ok := t.sessionStore.Get(store.KeyRefreshToken)
	if !ok || refreshToken == "" {
		return "", NoRefreshTokenErr
	}

	epoch := t.sessionStore.Epoch()

	accessToken, err := t.renewalCall(ctx, refreshToken)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && (statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden) {
			// The refresh token itself is dead. Irrecoverable.
			t.invalidate()
			return "", SessionExpiredErr
		}
		// Transient renewal failure: surface it, leave the session alone.
		return "", err
	}

	wrote, err := store.SetIfEpoch(t.sessionStore, epoch, store.KeyAccessToken, accessToken)
	if err != nil {
		return "", errors.Wrap(err, "[refreshTransport.renew] storing access token")
	}
	if !wrote {
		// A logout cleared the store while the renewal was in flight; the
		// late token must not resurrect the session.
		return "", SessionExpiredErr
	}

	log.Debug().Msg("access token renewed")
	return accessToken, nil
}

// renewalPayload is the data field of a successful renewal response.
type renewalPayload struct {
	AccessToken string `json:"access_token"`
}

// renewalCall posts to the refresh endpoint authenticated with the refresh
// token, bypassing the bearer-attach phase.
func (t *refreshTransport) renewalCall(ctx context.Context, refreshToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+RouteAuthRefresh, nil)
	if err != nil {
		return "", errors.Wrap(err, "[refreshTransport.renewalCall] http.NewRequestWithContext")
	}
	req.Header.Set(headerAuthorization, bearerPrefix+refreshToken)

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return "", errors.Wrap(err, "[refreshTransport.renewalCall] RoundTrip")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "[refreshTransport.renewalCall] reading response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Message: envelopeMessage(body)}
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", errors.Wrap(err, "[refreshTransport.renewalCall] decoding envelope")
	}
	var payload renewalPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return "", errors.Wrap(err, "[refreshTransport.renewalCall] decoding data")
	}
	if payload.AccessToken == "" {
		return "", errors.Wrap(UnexpectedStatusErr, "[refreshTransport.renewalCall] empty access token")
	}
	return payload.AccessToken, nil
}

func (t *refreshTransport) invalidate() {
	if err := t.sessionStore.Clear(); err != nil {
		log.Warn().Err(err).Msg("clearing session store after refresh failure")
	}
	if t.onInvalidate != nil {
		t.onInvalidate()
	}
}

func bearerToken(req *http.Request) string {
	auth := req.Header.Get(headerAuthorization)
	if !strings.HasPrefix(auth, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(auth, bearerPrefix)
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

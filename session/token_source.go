package session

import (
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/lexlink/client-go/identity"
	"github.com/lexlink/client-go/store"
)

// TokenSource adapts the session to the standard oauth2 interface so
// oauth2-aware HTTP stacks can consume it. Tokens come from the durable store,
// so renewals performed by the refresh protocol are visible immediately.
func (c *Controller) TokenSource() oauth2.TokenSource {
	return &storeTokenSource{sessionStore: c.sessionStore}
}

type storeTokenSource struct {
	sessionStore store.Store
}

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	accessToken, _ := ts.sessionStore.Get(store.KeyAccessToken)
	refreshToken, _ := ts.sessionStore.Get(store.KeyRefreshToken)
	creds := identity.Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
	if creds.AccessToken == "" {
		return nil, errors.New("[storeTokenSource.Token] no authenticated session")
	}
	return creds.Token(), nil
}

package session

import (
	"net/url"

	"github.com/lexlink/client-go/identity"
)

// Redirect query parameters delivered by the external identity provider.
const (
	paramAccessToken  = "access_token"
	paramRefreshToken = "refresh_token"
	paramUser         = "user"
)

// RedirectOutcome classifies what an inspected URL carried.
type RedirectOutcome int

const (
	// RedirectNotPresent means the URL carried no credential parameters;
	// the navigation is an ordinary one.
	RedirectNotPresent RedirectOutcome = iota
	// RedirectMalformed means credential parameters were present but the
	// identity payload did not parse. Treat as corrupt input.
	RedirectMalformed
	// RedirectAuthenticated means a complete credential pair and identity
	// arrived.
	RedirectAuthenticated
)

// RedirectResult is the parsed outcome of an external-provider redirect.
// Credentials and Identity are set only for RedirectAuthenticated.
type RedirectResult struct {
	Outcome     RedirectOutcome
	Credentials identity.Credentials
	Identity    *identity.Identity
}

// ParseRedirect inspects a URL for the three fields an OAuth-style provider
// redirect delivers: access token, refresh token, and a JSON identity
// payload. It is a pure function with no navigation or storage side effects.
func ParseRedirect(u *url.URL) RedirectResult {
	if u == nil {
		return RedirectResult{Outcome: RedirectNotPresent}
	}

	query := u.Query()
	accessToken := query.Get(paramAccessToken)
	refreshToken := query.Get(paramRefreshToken)
	userPayload := query.Get(paramUser)

	if accessToken == "" || refreshToken == "" || userPayload == "" {
		return RedirectResult{Outcome: RedirectNotPresent}
	}

	user, err := identity.Unmarshal(userPayload)
	if err != nil {
		return RedirectResult{Outcome: RedirectMalformed}
	}

	return RedirectResult{
		Outcome:     RedirectAuthenticated,
		Credentials: identity.Credentials{AccessToken: accessToken, RefreshToken: refreshToken},
		Identity:    user,
	}
}

package identity

import (
	"golang.org/x/oauth2"
)

// Credentials is an opaque bearer token pair issued by the credential service.
// The access token is short-lived and attached to every authenticated request;
// the refresh token is used only to mint new access tokens.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Valid reports whether both halves of the pair are present.
func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Token converts the pair into an oauth2 token so the session can feed
// standard oauth2-aware HTTP stacks.
func (c Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
	}
}

// CredentialsFromToken builds a pair from an oauth2 token.
func CredentialsFromToken(t *oauth2.Token) Credentials {
	if t == nil {
		return Credentials{}
	}
	return Credentials{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
}

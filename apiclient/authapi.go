package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/lexlink/client-go/identity"
)

// LoginRequest carries the credentials form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest carries the signup form. Role selects the marketplace area
// the account starts in.
type RegisterRequest struct {
	Email     string            `json:"email"`
	Password  string            `json:"password"`
	FirstName string            `json:"firstname"`
	LastName  string            `json:"lastname"`
	Role      identity.RoleType `json:"role"`
	Address   string            `json:"address,omitempty"`
	Location  string            `json:"location,omitempty"`
	Phone     string            `json:"phone,omitempty"`
}

// ForgotPasswordRequest asks the backend to start a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// authPayload is the data field of a successful login or register response.
type authPayload struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	User         *identity.Identity `json:"user"`
}

// Login exchanges credentials for a verified token pair and identity. It does
// not touch the session store; that is the session controller's job (T3).
func (c *Client) Login(ctx context.Context, req LoginRequest) (identity.Credentials, *identity.Identity, error) {
	var payload authPayload
	if err := c.do(ctx, http.MethodPost, RouteAuthLogin, req, &payload); err != nil {
		return identity.Credentials{}, nil, errors.Wrap(err, "[Client.Login]")
	}
	creds := identity.Credentials{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}
	if !creds.Valid() || payload.User == nil {
		return identity.Credentials{}, nil, errors.Wrap(UnexpectedStatusErr, "[Client.Login] incomplete auth payload")
	}
	return creds, payload.User, nil
}

// Register creates an account and returns the issued token pair and identity.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (identity.Credentials, *identity.Identity, error) {
	var payload authPayload
	if err := c.do(ctx, http.MethodPost, RouteAuthRegister, req, &payload); err != nil {
		return identity.Credentials{}, nil, errors.Wrap(err, "[Client.Register]")
	}
	creds := identity.Credentials{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}
	if !creds.Valid() || payload.User == nil {
		return identity.Credentials{}, nil, errors.Wrap(UnexpectedStatusErr, "[Client.Register] incomplete auth payload")
	}
	return creds, payload.User, nil
}

// ForgotPassword requests a password-reset email.
func (c *Client) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	return errors.Wrap(c.do(ctx, http.MethodPost, RouteAuthForgotPassword, req, nil), "[Client.ForgotPassword]")
}

// Logout notifies the backend that the session is ending. Callers treat
// failures as best-effort; client-side teardown happens regardless.
func (c *Client) Logout(ctx context.Context) error {
	return errors.Wrap(c.do(ctx, http.MethodPost, RouteAuthLogout, nil, nil), "[Client.Logout]")
}

// Me probes the identity-confirmation endpoint with the current access token.
func (c *Client) Me(ctx context.Context) (*identity.Identity, error) {
	var user identity.Identity
	if err := c.do(ctx, http.MethodGet, RouteAuthMe, nil, &user); err != nil {
		return nil, errors.Wrap(err, "[Client.Me]")
	}
	return &user, nil
}

// GoogleAuthURL is the OAuth entry point the host navigates to for Google
// login or signup. The provider redirects back to the application with the
// token pair and identity in the query string (see session.ParseRedirect).
func (c *Client) GoogleAuthURL(authType string) string {
	return c.baseURL + RouteAuthGoogle + "?auth_type=" + url.QueryEscape(authType)
}

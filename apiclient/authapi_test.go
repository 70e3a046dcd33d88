package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexlink/client-go/apiclient"
	"github.com/lexlink/client-go/identity"
	"github.com/lexlink/client-go/store"
)

func TestClient_Login(t *testing.T) {
	f := newFixture(t)

	t.Run("valid credentials", func(t *testing.T) {
		creds, user, err := f.client.Login(context.Background(), apiclient.LoginRequest{
			Email:    testEmail,
			Password: testPassword,
		})
		require.NoError(t, err)
		require.True(t, creds.Valid())
		require.Equal(t, testEmail, user.Email)
		require.Equal(t, identity.RoleLawyer, user.PrimaryRole())
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := f.client.Login(context.Background(), apiclient.LoginRequest{
			Email:    testEmail,
			Password: "nope",
		})
		require.Error(t, err)

		var statusErr *apiclient.StatusError
		require.True(t, errors.As(err, &statusErr))
		require.Equal(t, http.StatusUnauthorized, statusErr.Code)
		require.Equal(t, "invalid email or password", statusErr.Message)
	})
}

func TestClient_Register(t *testing.T) {
	f := newFixture(t)

	creds, user, err := f.client.Register(context.Background(), apiclient.RegisterRequest{
		Email:     "new.client@example.com",
		Password:  "An0therSecret!",
		FirstName: "Noa",
		LastName:  "Levi",
		Role:      identity.RoleClient,
	})
	require.NoError(t, err)
	require.True(t, creds.Valid())
	require.Equal(t, identity.RoleClient, user.PrimaryRole())
	require.NotEmpty(t, user.ID)
}

func TestClient_BearerAttachment(t *testing.T) {
	f := newFixture(t)

	// Without a stored token /auth/me is an unauthenticated call.
	_, err := f.client.Me(context.Background())
	require.Error(t, err)
	require.True(t, apiclient.IsUnauthorized(err))

	creds, ok := f.service.IssueCredentials(testEmail)
	require.True(t, ok)
	require.NoError(t, f.sessionStore.Set(store.KeyAccessToken, creds.AccessToken))
	require.NoError(t, f.sessionStore.Set(store.KeyRefreshToken, creds.RefreshToken))

	user, err := f.client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, testEmail, user.Email)
}

func TestClient_LawyerCaseEndpoints(t *testing.T) {
	f := newFixture(t)
	creds, ok := f.service.IssueCredentials(testEmail)
	require.True(t, ok)
	require.NoError(t, f.sessionStore.Set(store.KeyAccessToken, creds.AccessToken))
	require.NoError(t, f.sessionStore.Set(store.KeyRefreshToken, creds.RefreshToken))

	available, err := f.client.AvailableCases(context.Background())
	require.NoError(t, err)
	require.Empty(t, available)

	assigned, err := f.client.AssignedCases(context.Background())
	require.NoError(t, err)
	require.Empty(t, assigned)
}

func TestClient_GoogleAuthURL(t *testing.T) {
	f := newFixture(t)
	u := f.client.GoogleAuthURL("signup")
	require.Equal(t, f.server.URL+"/auth/google?auth_type=signup", u)
}

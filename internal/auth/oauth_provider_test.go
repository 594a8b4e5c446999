package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestProvider(t *testing.T, tokenResponse string) *OAuthProvider {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tokenResponse))
	}))
	t.Cleanup(srv.Close)

	return newOAuthProvider(OAuthProviderConfig{
		ClientID:     "client-123",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3333/auth/google/callback",
		Scopes:       []string{"openid", "email"},
	}, oauth2.Endpoint{
		AuthURL:  srv.URL + "/auth",
		TokenURL: srv.URL + "/token",
	}, srv.Client())
}

func TestOAuthProvider_GetAuthURL(t *testing.T) {
	p := NewGoogleProvider(OAuthProviderConfig{
		ClientID:    "client-123",
		RedirectURL: "http://localhost:3333/auth/google/callback",
		Scopes:      []string{"openid", "email"},
	}, nil)

	raw := p.GetAuthURL("state-xyz")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "client-123", q.Get("client_id"))
	assert.Equal(t, "openid email", q.Get("scope"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestOAuthProvider_ExchangeIDToken(t *testing.T) {
	p := newTestProvider(t, `{"access_token":"at","token_type":"Bearer","id_token":"the-id-token"}`)

	idToken, err := p.ExchangeIDToken(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "the-id-token", idToken)
}

func TestOAuthProvider_ExchangeIDToken_Missing(t *testing.T) {
	p := newTestProvider(t, `{"access_token":"at","token_type":"Bearer"}`)

	_, err := p.ExchangeIDToken(context.Background(), "auth-code")
	assert.ErrorIs(t, err, ErrMissingIDToken)
}

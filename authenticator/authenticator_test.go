package authenticator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIssuer serves a minimal discovery document and token endpoint
func newIssuer(t *testing.T) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL + "/",
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/oauth/token",
			"jwks_uri":               srv.URL + "/.well-known/jwks.json",
		})
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600,"id_token":"raw.id.token"}`))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srv *httptest.Server) OpenIDConfig {
	return OpenIDConfig{
		Domain:       srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		CallbackURL:  "http://localhost:8080/callback",
	}
}

func TestNewOpenIDProvider_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  OpenIDConfig
		want string
	}{
		{"missing domain", OpenIDConfig{}, "domain is required"},
		{"missing client id", OpenIDConfig{Domain: "a.example.com"}, "client ID is required"},
		{"missing secret", OpenIDConfig{Domain: "a.example.com", ClientID: "c"}, "client secret is required"},
		{"missing callback", OpenIDConfig{Domain: "a.example.com", ClientID: "c", ClientSecret: "s"}, "callback URL is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOpenIDProvider(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOpenIDConfig_Issuer(t *testing.T) {
	assert.Equal(t, "https://tenant.auth0.com/", OpenIDConfig{Domain: "tenant.auth0.com"}.Issuer())
	assert.Equal(t, "http://127.0.0.1:9999/", OpenIDConfig{Domain: "http://127.0.0.1:9999"}.Issuer())
}

func TestOpenIDProvider_AuthURLAndExchange(t *testing.T) {
	srv := newIssuer(t)

	provider, err := NewOpenIDProvider(context.Background(), testConfig(srv))
	require.NoError(t, err)

	authURL, err := url.Parse(provider.GetAuthURL("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", authURL.Path)
	assert.Equal(t, "xyz", authURL.Query().Get("state"))
	assert.Equal(t, "client", authURL.Query().Get("client_id"))
	assert.Contains(t, authURL.Query().Get("scope"), "openid")

	token, err := provider.ExchangeCode(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "raw.id.token", token.IDToken)

	_, err = provider.ExchangeCode(context.Background(), "bad-code")
	assert.Error(t, err)

	_, err = provider.GetClaims(context.Background(), &Token{AccessToken: "at"})
	assert.ErrorIs(t, err, ErrNoIDToken)
}

func TestClaims(t *testing.T) {
	claims := Claims{"sub": "auth0|1", "email": "a@example.com"}
	assert.Equal(t, "auth0|1", claims.Subject())
	assert.Equal(t, "a@example.com", claims.DisplayName())

	claims["nickname"] = "alice"
	assert.Equal(t, "alice", claims.DisplayName())

	assert.Equal(t, "", Claims{}.Subject())
}

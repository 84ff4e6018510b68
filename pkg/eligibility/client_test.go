package eligibility

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadops/leadbase-cli/internal/resilience"
)

func TestToken_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "acme-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "acme-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "tok-123",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL+"/query")
	tok, err := client.Token(context.Background(), Credentials{
		ClientID:     "acme-id",
		ClientSecret: "acme-secret",
	})

	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestToken_MissingAccessToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL+"/query")
	_, err := client.Token(context.Background(), Credentials{ClientID: "a", ClientSecret: "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token")
}

func TestToken_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL+"/query")
	_, err := client.Token(context.Background(), Credentials{ClientID: "a", ClientSecret: "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestQuery_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		var payload map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []string{"00012345678901", "12345678000195"}, payload["CNPJ"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":1,"listaCNPJ":["12345678000195"]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/token", srv.URL)
	matched, err := client.Query(context.Background(), "tok-123",
		[]string{"00012345678901", "12345678000195"})

	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Contains(t, matched, "12345678000195")
}

func TestQuery_PadsShortIdentifiers(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Remote side strips leading zeros; the client restores them.
		w.Write([]byte(`{"CNPJs":[12345678901, "987654"]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/token", srv.URL)
	matched, err := client.Query(context.Background(), "tok", []string{"x"})

	require.NoError(t, err)
	assert.Contains(t, matched, "00012345678901")
	assert.Contains(t, matched, "00000000987654")
}

func TestQuery_NoIdentifierList(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":0,"message":"no records"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/token", srv.URL)
	_, err := client.Query(context.Background(), "tok", []string{"x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no identifier list")
}

func TestQuery_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/token", srv.URL)
	_, err := client.Query(context.Background(), "tok", []string{"x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.True(t, resilience.IsTransient(err))
}

func TestQuery_ClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/token", srv.URL)
	_, err := client.Query(context.Background(), "expired", []string{"x"})

	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

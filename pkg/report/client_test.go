package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallDetail_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "2026-08-31", r.URL.Query().Get("date"))
		assert.Equal(t, "tok-1", r.URL.Query().Get("token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"call_id":1,"duration":42}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL+"/operators", "tok-1")
	raw, err := client.CallDetail(context.Background(), "2026-08-31")

	require.NoError(t, err)
	assert.JSONEq(t, `[{"call_id":1,"duration":42}]`, string(raw))
}

func TestOperatorTimes_NoRecordsSentinel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"Nenhum registro encontrado"`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/calls", srv.URL, "tok-1")
	raw, err := client.OperatorTimes(context.Background(), "2026-08-30")

	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestCallDetail_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, "bad-token")
	_, err := client.CallDetail(context.Background(), "2026-08-31")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestCallDetail_InvalidJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, "tok")
	_, err := client.CallDetail(context.Background(), "2026-08-31")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

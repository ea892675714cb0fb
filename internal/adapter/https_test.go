package adapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPSAdapter(creds Credentials) *HTTPSAdapter {
	return NewHTTPSAdapter(creds, 5*time.Second, zerolog.Nop())
}

func TestHTTPSAdapter_ProbeFindsFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && r.URL.Path == "/inbound/report-20260223.csv" {
			w.Header().Set("Content-Length", "42")
			w.Header().Set("Last-Modified", "Mon, 23 Feb 2026 08:00:00 GMT")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	a := newTestHTTPSAdapter(Credentials{})
	candidates, err := a.List(context.Background(), server.URL+"/inbound", "report-20260223.csv")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "report-20260223.csv", candidates[0].Filename)
	require.NotNil(t, candidates[0].Size)
	assert.Equal(t, int64(42), *candidates[0].Size)
	require.NotNil(t, candidates[0].LastModified)
}

func TestHTTPSAdapter_ProbeNotFoundMeansZeroCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	a := newTestHTTPSAdapter(Credentials{})
	candidates, err := a.List(context.Background(), server.URL+"/inbound", "missing.csv")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestHTTPSAdapter_UnauthorizedTaggedAsAuthentication(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	a := newTestHTTPSAdapter(Credentials{})
	_, err := a.List(context.Background(), server.URL+"/inbound", "report.csv")
	require.Error(t, err)
	assert.Equal(t, models.CategoryAuthentication, models.CategoryOf(err))
}

func TestHTTPSAdapter_ServerErrorTaggedAsConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	a := newTestHTTPSAdapter(Credentials{})
	_, err := a.List(context.Background(), server.URL+"/inbound", "report.csv")
	require.Error(t, err)
	assert.Equal(t, models.CategoryConnection, models.CategoryOf(err))
}

func TestHTTPSAdapter_WildcardUsesJSONListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name": "report-20260223.csv", "size": 10},
			{"name": "report-20260224.csv", "size": 11},
			{"name": "notes.txt", "size": 5}
		]`))
	}))
	defer server.Close()

	a := newTestHTTPSAdapter(Credentials{})
	candidates, err := a.List(context.Background(), server.URL+"/inbound", "report-*.csv")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
}

func TestHTTPSAdapter_FetchStreamsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-a", user)
		assert.Equal(t, "secret", pass)
		_, _ = w.Write([]byte("csv,content"))
	}))
	defer server.Close()

	a := newTestHTTPSAdapter(Credentials{Username: "client-a", Password: "secret"})
	reader, size, err := a.Fetch(context.Background(), CandidateFile{URL: server.URL + "/inbound/report.csv", Filename: "report.csv"})
	require.NoError(t, err)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "csv,content", string(body))
	assert.Equal(t, int64(len("csv,content")), size)
}

func TestHTTPSAdapter_ConnectionRefused(t *testing.T) {
	a := newTestHTTPSAdapter(Credentials{})
	_, err := a.List(context.Background(), "http://127.0.0.1:1/inbound", "report.csv")
	require.Error(t, err)
	category := models.CategoryOf(err)
	assert.True(t, category == models.CategoryConnection || category == models.CategoryTimeout, "got category %s", category)
}

func TestClassifyNetworkError_PreservesExistingCategory(t *testing.T) {
	tagged := models.NewAuthenticationError("source", errors.New("denied"))
	classified := classifyNetworkError("source", tagged)
	assert.Equal(t, models.CategoryAuthentication, models.CategoryOf(classified))
}

func TestClassifyNetworkError_ContextErrors(t *testing.T) {
	assert.Equal(t, models.CategoryTimeout, models.CategoryOf(classifyNetworkError("s", context.DeadlineExceeded)))
	assert.Equal(t, models.CategoryCancelled, models.CategoryOf(classifyNetworkError("s", context.Canceled)))
}

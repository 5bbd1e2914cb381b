package enrichment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEQCSearch_Decodes(t *testing.T) {
	var gotAuth, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotName = r.URL.Query().Get("name")
		_, _ = w.Write([]byte(`{"results": [
			{"company_id": "C1", "name": "甲公司", "type": "exact"},
			{"company_id": "C2", "name": "甲公司分部", "type": "fuzzy"}
		]}`))
	}))
	defer srv.Close()

	c := NewEQCClient(srv.URL, "tok123")
	candidates, err := c.Search(context.Background(), "甲公司")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok123", gotAuth)
	assert.Equal(t, "甲公司", gotName)
	require.Len(t, candidates, 2)
	assert.Equal(t, "C1", candidates[0].CompanyID)
	assert.Equal(t, "fuzzy", candidates[1].Type)
}

func TestEQCSearch_AuthFailureDisables(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewEQCClient(srv.URL, "bad")

	_, err := c.Search(context.Background(), "甲公司")
	require.ErrorIs(t, err, ErrProviderDisabled)
	assert.True(t, c.Disabled())

	// Subsequent calls short-circuit without touching the network.
	_, err = c.Search(context.Background(), "乙公司")
	require.ErrorIs(t, err, ErrProviderDisabled)
	assert.Equal(t, 1, calls)
}

func TestEQCSearch_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewEQCClient(srv.URL, "tok")
	_, err := c.Search(context.Background(), "甲公司")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.False(t, c.Disabled())
}

func TestEQCSearch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := NewEQCClient(srv.URL, "tok")
	_, err := c.Search(context.Background(), "甲公司")
	require.Error(t, err)
}

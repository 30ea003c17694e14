package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nbd-wtf/go-nostr/nip11"
	"github.com/rs/cors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleNIP11(t *testing.T) {
	rl := newTestRelay(t, &Config{
		Name:             "info test",
		Description:      "a relay under test",
		MaxLimit:         500,
		MaxSubscriptions: 20,
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/nostr+json")
	rec := httptest.NewRecorder()
	rl.ServeHTTP(rec, req)

	res := rec.Result()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/nostr+json", res.Header.Get("Content-Type"))

	var info nip11.RelayInformationDocument
	require.NoError(t, json.NewDecoder(res.Body).Decode(&info))
	assert.Equal(t, "info test", info.Name)
	assert.Contains(t, info.SupportedNIPs, 1)
	assert.Contains(t, info.SupportedNIPs, 45)
	require.NotNil(t, info.Limitation)
	assert.Equal(t, 500, info.Limitation.MaxLimit)
	assert.Equal(t, 20, info.Limitation.MaxSubscriptions)
}

func TestHandleNIP11CORS(t *testing.T) {
	rl := newTestRelay(t, nil)
	handler := cors.Default().Handler(rl)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Result().Header.Get("Access-Control-Allow-Origin"))
}

func TestHandleHome(t *testing.T) {
	rl := newTestRelay(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	rl.ServeHTTP(rec, req)

	res := rec.Result()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, rec.Body.String(), "test relay")
}

package workers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPostsTokenToLinkingAPI(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	w := &TelegramBotWorker{
		verifyURL:  server.URL + "/api/v1/telegram/verify",
		httpClient: &http.Client{Timeout: time.Second},
	}

	require.NoError(t, w.verify("tok_abc123", 987654321, "ada"))
	assert.Equal(t, "tok_abc123", got["token"])
	assert.EqualValues(t, 987654321, got["telegramChatId"])
	assert.Equal(t, "ada", got["telegramUsername"])
}

func TestVerifySurfacesAPIRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Invalid or expired token"}`))
	}))
	t.Cleanup(server.Close)

	w := &TelegramBotWorker{
		verifyURL:  server.URL + "/api/v1/telegram/verify",
		httpClient: &http.Client{Timeout: time.Second},
	}

	err := w.verify("stale", 1, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

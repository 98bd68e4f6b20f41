package mpesa

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/config"
	"github.com/Doc-Scripter/HelpingHand/pkg/retry"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

func testConfig(baseURL string) config.MpesaConfig {
	return config.MpesaConfig{
		Environment:      "sandbox",
		BaseURL:          baseURL,
		ConsumerKey:      "key",
		ConsumerSecret:   "secret",
		Passkey:          "passkey",
		ShortCode:        "174379",
		CallbackURL:      "https://example.org/api/v1/callbacks/mpesa/stk",
		TimeoutURL:       "https://example.org/api/v1/callbacks/mpesa/timeout",
		HTTPTimeout:      5 * time.Second,
		QueryMaxAttempts: 3,
		QueryRetryDelay:  time.Millisecond,
	}
}

// fakeDaraja serves the OAuth endpoint and delegates the rest to api.
type fakeDaraja struct {
	server     *httptest.Server
	tokenCalls atomic.Int32
	apiCalls   atomic.Int32
}

func newFakeDaraja(t *testing.T, api http.HandlerFunc) *fakeDaraja {
	t.Helper()
	f := &fakeDaraja{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok", "expires_in": "3599"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		api(w, r)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDaraja) client(opts ...Option) *Client {
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithQueryRetry(retry.Policy{MaxAttempts: 3, Delay: time.Millisecond, Retryable: retry.IsTransient}),
	}, opts...)
	return NewClient(testConfig(f.server.URL), zap.NewNop(), opts...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

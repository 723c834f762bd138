package service_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CZERTAINLY/dispatcher/internal/service"
	"github.com/stretchr/testify/require"
)

func TestRepoUploader(t *testing.T) {
	t.Parallel()

	type then struct {
		err string
	}
	var testCases = []struct {
		scenario    string
		status      int
		contentType string
		body        string
		then        then
	}{
		{"created", http.StatusCreated, "application/json", `{"id":"r-1"}`, then{}},
		{"created empty id", http.StatusCreated, "application/json", `{}`, then{"received unexpected body"}},
		{"created wrong type", http.StatusCreated, "text/plain", `ok`, then{"expected `application/json` content type, got: text/plain"}},
		{"bad request", http.StatusBadRequest, "application/problem+json", `{"detail":"broken report"}`, then{"status code: 400, detail: broken report"}},
		{"server error", http.StatusInternalServerError, "text/plain", `boom`, then{"unknown error, status: 500, body: boom"}},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			got := make(chan []byte, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/v1/reports" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				body, _ := io.ReadAll(r.Body)
				got <- body
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			u, err := service.NewRepoUploader(srv.URL)
			require.NoError(t, err)
			err = u.Upload(t.Context(), []byte(`{"results":[]}`))
			if tt.then.err != "" {
				require.EqualError(t, err, tt.then.err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, `{"results":[]}`, string(<-got))
		})
	}
}

func TestNewRepoUploader(t *testing.T) {
	t.Parallel()
	for _, url := range []string{"example.com", "http://", "http://example.com/api"} {
		_, err := service.NewRepoUploader(url)
		require.Error(t, err, url)
	}
	_, err := service.NewRepoUploader("http://example.com/")
	require.NoError(t, err)
}

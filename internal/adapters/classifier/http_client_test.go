package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, url string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(url, time.Second, 4096, utils.NewTextProcessor(zap.NewNop()), zap.NewNop())
}

func TestClassify(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/classify", r.URL.Path)

			var req struct {
				Text string `json:"text"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.NotEmpty(t, req.Text)
			// The client cleans text before sending.
			assert.NotContains(t, req.Text, "http")
			assert.NotContains(t, req.Text, "@")

			json.NewEncoder(w).Encode(core.Classification{
				Label: core.LabelFraudulent,
				Probabilities: map[string]float64{
					core.LabelNormal:     0.01,
					core.LabelFraudulent: 0.95,
					core.LabelHarassing:  0.02,
					core.LabelSuspicious: 0.02,
				},
			})
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		result, err := client.Classify(context.Background(),
			"Urgent! Verify your account at http://evil.example.com or email help@evil.example.com")
		require.NoError(t, err)
		assert.Equal(t, core.LabelFraudulent, result.Label)
		assert.InDelta(t, 0.95, result.Probabilities[core.LabelFraudulent], 0.001)
	})

	t.Run("server error surfaces as an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).Classify(context.Background(), "some message text")
		assert.Error(t, err)
	})

	t.Run("missing label is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).Classify(context.Background(), "some message text")
		assert.Error(t, err)
	})

	t.Run("text that cleans to nothing is an error", func(t *testing.T) {
		_, err := newTestClient(t, "http://localhost:1").Classify(context.Background(), "12345 !!! 678")
		assert.Error(t, err)
	})

	t.Run("unreachable service is an error", func(t *testing.T) {
		_, err := newTestClient(t, "http://localhost:1").Classify(context.Background(), "some message text")
		assert.Error(t, err)
	})
}

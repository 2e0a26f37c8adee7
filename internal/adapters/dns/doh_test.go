package dns

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDoHClientLookupTXT(t *testing.T) {
	t.Run("filters to TXT answers and strips quotes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/dns-json", r.Header.Get("Accept"))
			assert.Equal(t, "example.com", r.URL.Query().Get("name"))
			assert.Equal(t, "TXT", r.URL.Query().Get("type"))

			w.Header().Set("Content-Type", "application/x-javascript")
			w.Write([]byte(`{
				"Status": 0,
				"Answer": [
					{"type": 16, "data": "\"v=spf1 include:_spf.google.com ~all\""},
					{"type": 1, "data": "93.184.216.34"},
					{"type": 16, "data": "\"part-one\" \"part-two\""}
				]
			}`))
		}))
		defer srv.Close()

		client := NewDoHClient(srv.URL, time.Second, zap.NewNop())
		records, err := client.LookupTXT(context.Background(), "example.com")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "v=spf1 include:_spf.google.com ~all", records[0])
		assert.Equal(t, "part-onepart-two", records[1])
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewDoHClient(srv.URL, time.Second, zap.NewNop())
		_, err := client.LookupTXT(context.Background(), "example.com")
		assert.Error(t, err)
	})

	t.Run("empty answer yields no records", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"Status": 3}`))
		}))
		defer srv.Close()

		client := NewDoHClient(srv.URL, time.Second, zap.NewNop())
		records, err := client.LookupTXT(context.Background(), "nxdomain.example")
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestUnquoteTXT(t *testing.T) {
	assert.Equal(t, "plain", unquoteTXT(`"plain"`))
	assert.Equal(t, "unquoted", unquoteTXT("unquoted"))
	assert.Equal(t, "abcdef", unquoteTXT(`"abc" "def"`))
}

package geocode_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/timeclock/geocode"
)

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "-23.550520", r.URL.Query().Get("lat"))
		assert.Equal(t, "-46.633308", r.URL.Query().Get("lon"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name":"Praça da Sé, São Paulo"}`))
	}))
	defer srv.Close()

	c := geocode.NewClient(srv.URL+"/", time.Second)
	addr, err := c.ReverseGeocode(context.Background(), -23.55052, -46.633308)
	require.NoError(t, err)
	assert.Equal(t, "Praça da Sé, São Paulo", addr)
}

func TestReverseGeocode_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"no address", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
		}},
		{"bad body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := geocode.NewClient(srv.URL, time.Second).ReverseGeocode(context.Background(), 1, 2)
			assert.Error(t, err)
		})
	}
}

package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/astrosearch/api/internal/model"
)

func floatPtr(v float64) *float64 { return &v }

func TestSourcePreconditions(t *testing.T) {
	object := Params{ObjectName: "M31"}
	coords := Params{RA: floatPtr(10.68), Dec: floatPtr(41.27)}
	bibcode := Params{Bibcode: "2006ApJ...636L..85S"}
	empty := Params{}

	tests := []struct {
		name    string
		builder Builder
		object  bool
		coords  bool
		bibcode bool
	}{
		{"simbad", &SimbadBuilder{}, true, true, true},
		{"vizier", &VizierBuilder{}, true, true, false},
		{"ned", &NedBuilder{}, true, true, false},
		{"sdss", &SdssBuilder{}, false, true, false},
		{"gaia", &GaiaBuilder{}, true, true, false},
		{"ads", &AdsBuilder{}, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.object, tt.builder.Accepts(object))
			assert.Equal(t, tt.coords, tt.builder.Accepts(coords))
			assert.Equal(t, tt.bibcode, tt.builder.Accepts(bibcode))
			assert.False(t, tt.builder.Accepts(empty))
		})
	}
}

func TestParamsFromRequestDefaultsRadius(t *testing.T) {
	p := ParamsFromRequest(model.SearchRequest{Query: "M31"})
	assert.Equal(t, 0.1, p.Radius)

	p = ParamsFromRequest(model.SearchRequest{Query: "M31", Radius: 0.5})
	assert.Equal(t, 0.5, p.Radius)
}

func TestAdsBuilderSetsBearerToken(t *testing.T) {
	b := &AdsBuilder{BaseURL: "https://ads.example", Token: "secret"}
	desc, err := b.Build(Params{ObjectName: "M31"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", desc.Header.Get("Authorization"))
}

func TestParseBody(t *testing.T) {
	jsonBody, err := ParseBody("json", "application/json", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(jsonBody))

	csvBody, err := ParseBody("csv", "text/csv", []byte("ra,dec\n1.5,2.5\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"format":"csv","headers":["ra","dec"],"rows":[["1.5","2.5"]]}`, string(csvBody))

	textBody, err := ParseBody("text", "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"format":"text","data":"hello"}`, string(textBody))
}

func TestDispatcherCapturesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service melted", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, arbor.NewLogger())
	outcome, err := d.Do(context.Background(), &Descriptor{Method: http.MethodGet, URL: srv.URL, Format: "json"})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeError, outcome.Status)
	assert.Equal(t, http.StatusBadGateway, outcome.StatusCode)
	assert.Contains(t, outcome.Error, "upstream service error 502")
}

func TestDispatcherSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[1,2,3]}`))
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, arbor.NewLogger())
	outcome, err := d.Do(context.Background(), &Descriptor{Method: http.MethodGet, URL: srv.URL, Format: "json"})
	require.NoError(t, err)

	assert.True(t, outcome.OK())
	assert.Equal(t, http.StatusOK, outcome.StatusCode)
	assert.JSONEq(t, `{"data":[1,2,3]}`, string(outcome.Data))
}

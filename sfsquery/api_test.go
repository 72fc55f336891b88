package sfsquery

import (
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeAPI serves canned API bodies keyed by the ip query parameter.
func newFakeAPI(t *testing.T, bodies map[string]string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/api", func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		assert.Equal(t, UserAgent, req.UserAgent())
		body, ok := bodies[mux.Vars(req)["ip"]]
		if !ok {
			http.Error(w, "unknown ip", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}).Methods(http.MethodGet).Queries("ip", "{ip}")

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestParseAPIResponse(t *testing.T) {
	res, err := parseAPIResponse([]byte(fixtureJSON))
	require.NoError(t, err)

	assert.True(t, res.Appears)
	assert.Equal(t, 12, res.Frequency)
	assert.Equal(t, 85.5, res.Confidence)
	assert.Equal(t, "US", res.Country)
	assert.Equal(t, 15169, res.ASN)
	assert.Equal(t, int64(1524241200), res.LastSeen)
}

func TestParseAPIResponseNumbers(t *testing.T) {
	res, err := parseAPIResponse([]byte(`{"success":true,"ip":{"frequency":7,"appears":1,"confidence":12.25,"asn":3320,"lastseen":"2020-01-02T03:04:05Z"}}`))
	require.NoError(t, err)

	assert.True(t, res.Appears)
	assert.Equal(t, 7, res.Frequency)
	assert.Equal(t, 12.25, res.Confidence)
	assert.Equal(t, 3320, res.ASN)
	assert.Equal(t, int64(1577934245), res.LastSeen)
	assert.Empty(t, res.Country)
}

func TestParseAPIResponseSkipsBadFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not listed", body: `{"success":1,"ip":{"appears":0,"frequency":0}}`},
		{name: "non numeric", body: `{"success":1,"ip":{"frequency":"many","confidence":"high","asn":"AS15169"}}`},
		{name: "wrong types", body: `{"success":1,"ip":{"frequency":[1],"confidence":{},"country":12,"lastseen":5}}`},
		{name: "empty strings", body: `{"success":1,"ip":{"frequency":"","appears":"0","country":"","lastseen":""}}`},
		{name: "unparseable date", body: `{"success":1,"ip":{"lastseen":"last tuesday"}}`},
		{name: "hex is not numeric", body: `{"success":1,"ip":{"frequency":"0x1F"}}`},
		{name: "no ip object", body: `{"success":1}`},
		{name: "ip is a list", body: `{"success":1,"ip":[]}`},
		{name: "out of range", body: `{"success":1,"ip":{"frequency":"1e300","asn":-3e12}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parseAPIResponse([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, Result{}, res)
		})
	}
}

func TestParseAPIResponseIntegerLimits(t *testing.T) {
	res, err := parseAPIResponse([]byte(`{"success":1,"ip":{"frequency":"2147483647","asn":4294967296,"confidence":"1e300"}}`))
	require.NoError(t, err)

	assert.Equal(t, math.MaxInt32, res.Frequency)
	assert.Zero(t, res.ASN)
	assert.Equal(t, 1e300, res.Confidence)
}

func TestParseAPIResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "not json", body: `not json`, want: ErrMalformedResponse},
		{name: "json string", body: `"not json"`, want: ErrMalformedResponse},
		{name: "json list", body: `[1,2,3]`, want: ErrMalformedResponse},
		{name: "json null", body: `null`, want: ErrMalformedResponse},
		{name: "empty", body: ``, want: ErrMalformedResponse},
		{name: "success 0", body: `{"success":0,"ip":{"appears":1,"frequency":"12"}}`, want: ErrServiceFailure},
		{name: "success string 0", body: `{"success":"0"}`, want: ErrServiceFailure},
		{name: "success missing", body: `{"ip":{"appears":1}}`, want: ErrServiceFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parseAPIResponse([]byte(tt.body))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, Result{}, res)
		})
	}
}

func TestParseLastSeen(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{in: "2018-04-20 16:20:00", want: 1524241200, wantOK: true},
		{in: " 2018-04-20 16:20:00 ", want: 1524241200, wantOK: true},
		{in: "2018-04-20T16:20:00Z", want: 1524241200, wantOK: true},
		{in: "2018-04-20", want: 1524182400, wantOK: true},
		{in: "yesterday", wantOK: false},
		{in: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseLastSeen(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAPIQueryMalformedKeepsRaw(t *testing.T) {
	f := &stubFetcher{name: "stub", body: "  not json \n"}
	c := newTestClient(t, "188.35.167.7", WithFetchers(f))

	assert.ErrorIs(t, c.Err(), ErrMalformedResponse)
	assert.Equal(t, "not json", c.RawResponse())
	assert.False(t, c.Appears())
	assert.Zero(t, c.Frequency())
	assert.Zero(t, c.Confidence())
	assert.Zero(t, c.LastSeen())
	assert.Zero(t, c.ASN())
	assert.Empty(t, c.Country())
}

func TestAPIQueryServiceFailure(t *testing.T) {
	body := `{"success":0,"error":"rate limited","ip":{"appears":1,"frequency":"12","confidence":"85.5","country":"US","asn":"15169"}}`
	f := &stubFetcher{name: "stub", body: body}
	c := newTestClient(t, "188.35.167.7", WithFetchers(f))

	assert.ErrorIs(t, c.Err(), ErrServiceFailure)
	assert.Equal(t, Result{Raw: body}, c.Result())
}

func TestAPIQueryAgainstServer(t *testing.T) {
	var hits atomic.Int32
	srv := newFakeAPI(t, map[string]string{
		"188.35.167.7":         "\n" + fixtureJSON + "\n",
		"2001:4860:4860::8888": `{"success":1,"ip":{"appears":0,"frequency":0,"asn":15169,"country":"us"}}`,
	}, &hits)

	c := newTestClient(t, "188.35.167.7", WithAPIEndpoint(srv.URL+"/api?json&ip="))
	require.NoError(t, c.Err())
	assert.Equal(t, fixtureJSON, c.RawResponse())
	assert.Equal(t, Result{
		Raw:        fixtureJSON,
		Appears:    true,
		Confidence: 85.5,
		Frequency:  12,
		LastSeen:   1524241200,
		ASN:        15169,
		Country:    "US",
	}, c.Result())

	v6 := newTestClient(t, "2001:4860:4860::8888", WithAPIEndpoint(srv.URL+"/api?json&ip="))
	require.NoError(t, v6.Err())
	assert.False(t, v6.Appears())
	assert.Equal(t, 15169, v6.ASN())
	assert.Equal(t, "us", v6.Country())

	assert.Equal(t, int32(2), hits.Load())
}

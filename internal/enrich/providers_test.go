package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrigin struct {
	origin Origin
	err    error
}

func (s stubOrigin) Origin(context.Context, string) (Origin, error) { return s.origin, s.err }

func TestWhoisRegistry_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ip/203.0.113.5", r.URL.Path)
		assert.Equal(t, "application/rdap+json", r.Header.Get("Accept"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rdap+json")
		_, _ = w.Write([]byte(`{"handle":"NET-203-0-113-0-1","name":"EXAMPLE-HOSTING-NETWORK","country":"DE"}`))
	}))
	defer srv.Close()

	rdap := NewRDAPClient(srv.URL+"/", "test-agent", time.Second, srv.Client())

	t.Run("with origin", func(t *testing.T) {
		reg := NewWhoisRegistry(rdap, stubOrigin{origin: Origin{ASN: "64500", Country: "NL"}})
		own, err := reg.Lookup(context.Background(), "203.0.113.5")
		require.NoError(t, err)
		assert.Equal(t, "64500", own.ASN)
		assert.Equal(t, "EXAMPLE-HOSTING-NETWORK", own.Org)
		assert.Equal(t, "NL", own.Country)
	})

	t.Run("origin not announced", func(t *testing.T) {
		reg := NewWhoisRegistry(rdap, stubOrigin{err: ErrNotFound})
		own, err := reg.Lookup(context.Background(), "203.0.113.5")
		require.NoError(t, err)
		assert.Equal(t, "Unknown", own.ASN)
		assert.Equal(t, "DE", own.Country)
	})

	t.Run("origin failure", func(t *testing.T) {
		reg := NewWhoisRegistry(rdap, stubOrigin{err: context.DeadlineExceeded})
		_, err := reg.Lookup(context.Background(), "203.0.113.5")
		assert.Error(t, err)
	})

	t.Run("invalid address", func(t *testing.T) {
		reg := NewWhoisRegistry(rdap, nil)
		_, err := reg.Lookup(context.Background(), "unknown")
		assert.Error(t, err)
	})
}

func TestWhoisRegistry_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	reg := NewWhoisRegistry(NewRDAPClient(srv.URL, "", time.Second, srv.Client()), nil)
	_, err := reg.Lookup(context.Background(), "203.0.113.5")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestNominatim_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		switch r.URL.Query().Get("q") {
		case "Maranello":
			_, _ = w.Write([]byte(`[{"lat":"44.5256","lon":"10.8664","display_name":"Maranello, Unione dei comuni, Modena, Emilia-Romagna, Italia"}]`))
		case "bad":
			_, _ = w.Write([]byte(`[{"lat":"north","lon":"1"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "test-agent", time.Second, srv.Client())

	loc, err := n.Geocode(context.Background(), "Maranello")
	require.NoError(t, err)
	assert.True(t, loc.Found)
	assert.InDelta(t, 44.5256, loc.Lat, 1e-9)
	assert.InDelta(t, 10.8664, loc.Lon, 1e-9)
	assert.Equal(t, "Italia", loc.Country)

	_, err = n.Geocode(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = n.Geocode(context.Background(), "bad")
	assert.Error(t, err)
}

func TestNominatim_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "", 50*time.Millisecond, srv.Client())
	start := time.Now()
	_, err := n.Geocode(context.Background(), "Slowtown")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func wikidataServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/w/api.php", r.URL.Path)
		q := r.URL.Query()
		switch q.Get("action") {
		case "wbsearchentities":
			if q.Get("search") == "Nintendo" {
				_, _ = w.Write([]byte(`{"search":[{"id":"Q8093"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"search":[]}`))
		case "wbgetclaims":
			assert.Equal(t, "P159", q.Get("property"))
			_, _ = w.Write([]byte(`{"claims":{"P159":[{"mainsnak":{"datavalue":{"value":{"entity-type":"item","id":"Q34600"}}}}]}}`))
		case "wbgetentities":
			assert.Equal(t, "Q34600", q.Get("ids"))
			_, _ = w.Write([]byte(`{"entities":{"Q34600":{"labels":{"en":{"value":"Kyoto"}},"claims":{"P625":[{"mainsnak":{"datavalue":{"value":{"latitude":35.0117,"longitude":135.7683}}}}]}}}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

type countingThrottle struct{ waits atomic.Int32 }

func (c *countingThrottle) Wait(context.Context) error {
	c.waits.Add(1)
	return nil
}

func TestWikidata_Headquarters(t *testing.T) {
	var calls atomic.Int32
	srv := wikidataServer(t, &calls)
	defer srv.Close()

	throttle := &countingThrottle{}
	wd := NewWikidata(srv.URL, "test-agent", time.Second, throttle, srv.Client())

	loc, err := wd.Headquarters(context.Background(), "Nintendo")
	require.NoError(t, err)
	assert.True(t, loc.Found)
	assert.Equal(t, "Kyoto", loc.Country)
	assert.InDelta(t, 35.0117, loc.Lat, 1e-9)
	assert.InDelta(t, 135.7683, loc.Lon, 1e-9)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(1), throttle.waits.Load(), "one throttle wait per lookup")

	_, err = wd.Headquarters(context.Background(), "Unheard Of GmbH")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewThrottle_GlobalRate(t *testing.T) {
	l := NewThrottle(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	unlimited := NewThrottle(0)
	start = time.Now()
	require.NoError(t, unlimited.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestNewThrottle_WaitsFullIntervalAfterIdle(t *testing.T) {
	l := NewThrottle(40 * time.Millisecond)
	require.NoError(t, l.Wait(context.Background()))

	// long enough for a plain token bucket to refill
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestNewThrottle_ConcurrentCallersAreSpaced(t *testing.T) {
	l := NewThrottle(30 * time.Millisecond)

	start := time.Now()
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Wait(context.Background()))
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestNewThrottle_Cancelled(t *testing.T) {
	l := NewThrottle(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

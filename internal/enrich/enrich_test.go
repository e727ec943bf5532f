package enrich

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/heritage-atlas/heritage-cli/internal/geocache"
	"github.com/heritage-atlas/heritage-cli/internal/model"
	"github.com/heritage-atlas/heritage-cli/internal/resilience"
	"github.com/heritage-atlas/heritage-cli/pkg/geocode"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubProvider answers from a table and counts calls per address.
type stubProvider struct {
	mu      sync.Mutex
	answers map[string][]geocode.Outcome
	calls   map[string]int
}

func newStub(answers map[string][]geocode.Outcome) *stubProvider {
	return &stubProvider{answers: answers, calls: make(map[string]int)}
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Geocode(_ context.Context, address string) geocode.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls[address]
	s.calls[address]++
	seq := s.answers[address]
	if len(seq) == 0 {
		return geocode.NoMatch()
	}
	if n >= len(seq) {
		return seq[len(seq)-1]
	}
	return seq[n]
}

func (s *stubProvider) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func newClient(p geocode.Provider) *geocode.Client {
	return geocode.NewClient(p,
		geocode.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		geocode.WithRetry(resilience.RetryConfig{MaxAttempts: 3, Wait: time.Millisecond}),
	)
}

func newFileCache(t *testing.T, path string) *geocache.Cache {
	t.Helper()
	c, err := geocache.Open(context.Background(), geocache.NewFileStore(path))
	require.NoError(t, err)
	return c
}

func rec(addr string) model.NormalizedRecord {
	return model.NormalizedRecord{Address: addr}
}

func matched(lat, lon float64) geocode.Outcome {
	return geocode.Matched(geocode.Result{Latitude: lat, Longitude: lon})
}

func TestEnrich_TwoSourceScenario(t *testing.T) {
	stub := newStub(map[string][]geocode.Outcome{
		"Taj Mahal, Agra, Uttar Pradesh": {matched(27.1751, 78.0421)},
		"Qutub Minar, Delhi":             {matched(28.5245, 77.1855)},
	})
	cache := newFileCache(t, filepath.Join(t.TempDir(), "cache.json"))

	recs := []model.NormalizedRecord{
		{SiteName: "Taj Mahal", City: "Agra", State: "Uttar Pradesh", Address: "Taj Mahal, Agra, Uttar Pradesh"},
		{Address: "Qutub Minar, Delhi"},
	}
	out, stats, err := New(newClient(stub), cache).Enrich(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.True(t, out[0].HasCoordinates())
	assert.Equal(t, 27.1751, *out[0].Latitude)
	assert.Equal(t, 78.0421, *out[0].Longitude)
	assert.Equal(t, 1, stub.calls["Qutub Minar, Delhi"], "literal address is passed unchanged")
	assert.Equal(t, 2, stats.Lookups)
}

func TestEnrich_OneLookupPerDistinctAddress(t *testing.T) {
	stub := newStub(map[string][]geocode.Outcome{"Red Fort, Delhi, Delhi": {matched(28.6562, 77.241)}})
	cache := newFileCache(t, filepath.Join(t.TempDir(), "cache.json"))

	recs := []model.NormalizedRecord{rec("Red Fort, Delhi, Delhi"), rec("Red Fort, Delhi, Delhi"), rec("Red Fort, Delhi, Delhi")}
	out, stats, err := New(newClient(stub), cache).Enrich(context.Background(), recs)
	require.NoError(t, err)

	assert.Equal(t, 1, stub.total())
	assert.Equal(t, 1, stats.Addresses)
	for _, r := range out {
		require.True(t, r.HasCoordinates())
		assert.Equal(t, 28.6562, *r.Latitude)
	}
}

func TestEnrich_TransientTwiceThenSuccess(t *testing.T) {
	stub := newStub(map[string][]geocode.Outcome{
		"Hampi": {
			geocode.Transient(errors.New("503")),
			geocode.Transient(errors.New("timeout")),
			matched(15.335, 76.46),
		},
	})
	cache := newFileCache(t, filepath.Join(t.TempDir(), "cache.json"))

	out, stats, err := New(newClient(stub), cache).Enrich(context.Background(), []model.NormalizedRecord{rec("Hampi")})
	require.NoError(t, err)

	assert.Equal(t, 3, stub.calls["Hampi"])
	require.True(t, out[0].HasCoordinates())
	assert.Equal(t, 15.335, *out[0].Latitude)
	assert.Equal(t, 76.46, *out[0].Longitude)
	assert.Equal(t, 1, stats.Matched)
}

func TestEnrich_NoMatchCachedAndNotRequeried(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	stub := newStub(nil)

	out, stats, err := New(newClient(stub), newFileCache(t, path)).Enrich(context.Background(), []model.NormalizedRecord{rec("Nowhere")})
	require.NoError(t, err)
	assert.Nil(t, out[0].Latitude)
	assert.Nil(t, out[0].Longitude)
	assert.Equal(t, 1, stats.NoMatch)

	reloaded := newFileCache(t, path)
	entry, ok := reloaded.Get("Nowhere")
	require.True(t, ok)
	assert.Equal(t, geocache.StatusNoResult, entry.Status)

	_, stats, err = New(newClient(stub), reloaded).Enrich(context.Background(), []model.NormalizedRecord{rec("Nowhere")})
	require.NoError(t, err)
	assert.Equal(t, 1, stub.total(), "second run makes zero calls")
	assert.Equal(t, 1, stats.CacheHits)
}

func TestEnrich_IdempotentWithWarmCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	stub := newStub(map[string][]geocode.Outcome{
		"a": {matched(12.9716, 77.5946)},
		"b": {matched(13.0827, 80.2707)},
	})
	recs := []model.NormalizedRecord{rec("a"), rec("b"), rec("c")}

	first, _, err := New(newClient(stub), newFileCache(t, path)).Enrich(context.Background(), recs)
	require.NoError(t, err)
	calls := stub.total()

	second, stats, err := New(newClient(stub), newFileCache(t, path)).Enrich(context.Background(), recs)
	require.NoError(t, err)

	assert.Equal(t, calls, stub.total())
	assert.Equal(t, 0, stats.Lookups)
	assert.Equal(t, first, second)
}

func TestEnrich_PermanentAndExhaustedAreNoResult(t *testing.T) {
	stub := newStub(map[string][]geocode.Outcome{
		"denied": {geocode.Permanent(errors.New("403 forbidden"))},
		"flaky":  {geocode.Transient(errors.New("429"))},
	})
	cache := newFileCache(t, filepath.Join(t.TempDir(), "cache.json"))

	out, stats, err := New(newClient(stub), cache).Enrich(context.Background(), []model.NormalizedRecord{rec("denied"), rec("flaky")})
	require.NoError(t, err)

	assert.False(t, out[0].HasCoordinates())
	assert.False(t, out[1].HasCoordinates())
	assert.Equal(t, 1, stats.Permanent)
	assert.Equal(t, 1, stats.Transient)
	assert.Equal(t, 1, stub.calls["denied"])
	assert.Equal(t, 3, stub.calls["flaky"])

	for _, addr := range []string{"denied", "flaky"} {
		e, ok := cache.Get(addr)
		require.True(t, ok)
		assert.Equal(t, geocache.StatusNoResult, e.Status)
	}
}

func TestEnrich_EmptyAddressIsLookedUp(t *testing.T) {
	stub := newStub(nil)
	cache := newFileCache(t, filepath.Join(t.TempDir(), "cache.json"))

	_, _, err := New(newClient(stub), cache).Enrich(context.Background(), []model.NormalizedRecord{rec("")})
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls[""])
}

func TestEnrich_PersistFailureKeepsResults(t *testing.T) {
	// A directory where the cache file should be makes every write fail.
	dir := t.TempDir()
	stub := newStub(map[string][]geocode.Outcome{"a": {matched(1.25, 2.5)}})
	cache := geocache.New(geocache.NewFileStore(dir), geocache.WithCheckpointEvery(1))

	out, stats, err := New(newClient(stub), cache).Enrich(context.Background(), []model.NormalizedRecord{rec("a")})
	require.NoError(t, err)
	require.True(t, out[0].HasCoordinates())
	assert.Equal(t, 1.25, *out[0].Latitude)
	assert.GreaterOrEqual(t, stats.PersistFailures, 1)
}

func TestEnrich_CancelledFlushesAndReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := geocode.ProviderFunc(func(_ context.Context, address string) geocode.Outcome {
		if address == "second" {
			cancel()
		}
		return matched(10, 20)
	})

	out, stats, err := New(newClient(p), newFileCache(t, path)).Enrich(ctx, []model.NormalizedRecord{rec("first"), rec("second"), rec("third")})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stats.Lookups)

	require.Len(t, out, 3, "partial results are returned with the error")
	assert.True(t, out[0].HasCoordinates())
	assert.False(t, out[1].HasCoordinates())
	assert.False(t, out[2].HasCoordinates())

	reloaded := newFileCache(t, path)
	_, ok := reloaded.Get("first")
	assert.True(t, ok, "completed lookups are flushed on interruption")
	_, ok = reloaded.Get("second")
	assert.False(t, ok, "the interrupted lookup is not cached")
}

func TestEnrich_OpenBreakerSkipsWithoutCaching(t *testing.T) {
	stub := newStub(map[string][]geocode.Outcome{
		"a": {geocode.Transient(errors.New("503"))},
		"b": {matched(1, 2)},
	})
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	client := geocode.NewClient(stub,
		geocode.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		geocode.WithRetry(resilience.RetryConfig{MaxAttempts: 2, Wait: time.Millisecond}),
		geocode.WithBreaker(cb),
	)
	cache := newFileCache(t, filepath.Join(t.TempDir(), "cache.json"))

	out, stats, err := New(client, cache).Enrich(context.Background(), []model.NormalizedRecord{rec("a"), rec("b")})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Transient)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Lookups)
	assert.Equal(t, 0, stub.calls["b"])
	assert.False(t, out[1].HasCoordinates())

	_, ok := cache.Get("b")
	assert.False(t, ok, "skipped address stays absent so a later run retries it")
	e, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, geocache.StatusNoResult, e.Status)
}

func TestEnrich_LimiterDeadlineLeavesAddressUncached(t *testing.T) {
	stub := newStub(map[string][]geocode.Outcome{"first": {matched(1, 2)}})
	client := geocode.NewClient(stub,
		geocode.WithMinDelay(time.Hour),
		geocode.WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)
	cache := newFileCache(t, filepath.Join(t.TempDir(), "cache.json"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	out, stats, err := New(client, cache).Enrich(ctx, []model.NormalizedRecord{rec("first"), rec("second")})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Lookups)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Permanent)
	assert.True(t, out[0].HasCoordinates())
	assert.False(t, out[1].HasCoordinates())

	_, ok := cache.Get("second")
	assert.False(t, ok, "an address the provider never saw is not cached as no_result")
}

func TestEnrich_CacheHitLoggedAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))

	path := filepath.Join(t.TempDir(), "cache.json")
	stub := newStub(map[string][]geocode.Outcome{"Konark Sun Temple": {matched(19.8876, 86.0945)}})
	_, _, err := New(newClient(stub), newFileCache(t, path)).Enrich(context.Background(), []model.NormalizedRecord{rec("Konark Sun Temple")})
	require.NoError(t, err)
	assert.Zero(t, logs.FilterMessage("enrich: cache hit").Len())

	_, stats, err := New(newClient(stub), newFileCache(t, path)).Enrich(context.Background(), []model.NormalizedRecord{rec("Konark Sun Temple")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CacheHits)
	assert.Equal(t, 1, stub.total())

	hits := logs.FilterMessage("enrich: cache hit").All()
	require.Len(t, hits, 1)
	assert.Equal(t, zapcore.DebugLevel, hits[0].Level)
	assert.Equal(t, "Konark Sun Temple", hits[0].ContextMap()["address"])
	assert.Equal(t, "matched", hits[0].ContextMap()["status"])
}

package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/mr1hm/go-weather-ticker/internal/broadcast"
	"github.com/mr1hm/go-weather-ticker/internal/config"
	"github.com/mr1hm/go-weather-ticker/internal/models"
	"github.com/mr1hm/go-weather-ticker/internal/observability"
	"github.com/mr1hm/go-weather-ticker/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

// mockAlertRepo implements repository.AlertRepository for testing
type mockAlertRepo struct {
	mu          sync.Mutex
	records     map[string]repository.Record
	upsertCount atomic.Int64
}

func newMockRepo() *mockAlertRepo {
	return &mockAlertRepo{
		records: make(map[string]repository.Record),
	}
}

func (m *mockAlertRepo) Upsert(ctx context.Context, r repository.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.Alert.ID] = r
	m.upsertCount.Add(1)
	return nil
}

func (m *mockAlertRepo) SentAt(ctx context.Context, id string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r.Sent, ok, nil
}

func (m *mockAlertRepo) ListActive(ctx context.Context) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alerts := []models.Alert{}
	for _, r := range m.records {
		alerts = append(alerts, r.Alert)
	}
	models.SortByPriority(alerts)
	return alerts, nil
}

func (m *mockAlertRepo) RemoveExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockAlertRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

const nwsFixture = `{
  "features": [
    {
      "id": "https://api.weather.gov/alerts/urn:oid:1",
      "properties": {
        "id": "urn:oid:1",
        "event": "Special Weather Statement",
        "headline": "Special Weather Statement issued May 1",
        "areaDesc": "Bossier, LA",
        "messageType": "Update",
        "sent": "2024-05-01T11:00:00-05:00",
        "expires": "2024-05-01T13:00:00-05:00",
        "parameters": {}
      }
    },
    {
      "id": "https://api.weather.gov/alerts/urn:oid:2",
      "properties": {
        "id": "urn:oid:2",
        "event": "Tornado Warning",
        "headline": "Tornado Warning issued May 1",
        "areaDesc": "Caddo, LA",
        "messageType": "Alert",
        "sent": "2024-05-01T12:00:00-05:00",
        "expires": "2024-05-01T12:45:00-05:00",
        "parameters": {
          "tornadoDetection": ["RADAR INDICATED"],
          "maxHailSize": ["1.00"]
        }
      }
    },
    {
      "id": "https://api.weather.gov/alerts/urn:oid:3",
      "properties": {"id": "urn:oid:3", "event": ""}
    }
  ]
}`

type nwsServer struct {
	srv      *httptest.Server
	requests atomic.Int64
	status   atomic.Int64
	mu       sync.Mutex
	lastReq  *http.Request
}

func newNWSServer(t *testing.T) *nwsServer {
	t.Helper()
	s := &nwsServer{}
	s.status.Store(http.StatusOK)
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.mu.Lock()
		s.lastReq = r.Clone(context.Background())
		s.mu.Unlock()

		if code := int(s.status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		fmt.Fprint(w, nwsFixture)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func testConfig(url string) *config.Config {
	return &config.Config{
		Worker: config.WorkerConfig{
			Count:      2,
			BufferSize: 10,
		},
		Sources: config.SourcesConfig{
			NWSEnabled:      true,
			NWSURL:          url,
			NWSPollInterval: time.Minute,
			NWSCodes:        []string{"TOR", "SPS"},
			NWSUserAgent:    "weather-ticker-test",
		},
	}
}

func TestManager_PollStoresAndPublishes(t *testing.T) {
	upstream := newNWSServer(t)
	client := upstream.srv.Client()
	defer client.CloseIdleConnections()

	clock := clockwork.NewFakeClock()
	repo := newMockRepo()
	b := broadcast.New()
	metrics := observability.NewMetricsForTesting()
	mgr := NewManager(testConfig(upstream.srv.URL+"/alerts/active"), repo, b, metrics,
		WithClock(clock), WithHTTPClient(client))

	_, snapshots := b.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	defer func() {
		cancel()
		mgr.Stop()
		b.Close()
	}()

	var snapshot []models.Alert
	select {
	case snapshot = <-snapshots:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first snapshot")
	}

	if len(snapshot) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(snapshot))
	}
	if snapshot[0].Event != "Tornado Warning" {
		t.Errorf("expected tornado warning first, got %s", snapshot[0].Event)
	}
	if want := "Tornado Detection: Radar indicated, Max Hail: 1.00"; snapshot[0].Details != want {
		t.Errorf("expected details %q, got %q", want, snapshot[0].Details)
	}
	if want := "UPDATE, Special Weather Statement issued May 1"; snapshot[1].Details != want {
		t.Errorf("expected details %q, got %q", want, snapshot[1].Details)
	}
	if snapshot[0].ExpirationTime == nil || snapshot[0].ExpirationTime.Location() != time.UTC {
		t.Errorf("expected UTC expiration, got %v", snapshot[0].ExpirationTime)
	}

	upstream.mu.Lock()
	req := upstream.lastReq
	upstream.mu.Unlock()
	if ua := req.Header.Get("User-Agent"); ua != "weather-ticker-test" {
		t.Errorf("expected user agent to be sent, got %q", ua)
	}
	q := req.URL.Query()
	if q.Get("code") != "TOR,SPS" || q.Get("status") != "actual" || q.Get("limit") != "500" {
		t.Errorf("unexpected query: %s", req.URL.RawQuery)
	}

	// Second poll sees the same sent times and stores nothing.
	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("poller never waited on its ticker: %v", err)
	}
	clock.Advance(time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(metrics.AlertsSkipped) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 skipped alerts, got %v", testutil.ToFloat64(metrics.AlertsSkipped))
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := repo.upsertCount.Load(); got != 2 {
		t.Errorf("expected 2 upserts, got %d", got)
	}
	if got := testutil.ToFloat64(metrics.Polls.WithLabelValues(sourceNWS, "success")); got != 2 {
		t.Errorf("expected 2 successful polls, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ActiveAlerts); got != 2 {
		t.Errorf("expected 2 active alerts, got %v", got)
	}
}

func TestManager_PollFailure(t *testing.T) {
	upstream := newNWSServer(t)
	upstream.status.Store(http.StatusServiceUnavailable)
	client := upstream.srv.Client()
	defer client.CloseIdleConnections()

	repo := newMockRepo()
	metrics := observability.NewMetricsForTesting()
	mgr := NewManager(testConfig(upstream.srv.URL), repo, nil, metrics,
		WithClock(clockwork.NewFakeClock()), WithHTTPClient(client))

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(metrics.Polls.WithLabelValues(sourceNWS, "error")) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("expected a failed poll")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	mgr.Stop()

	if repo.upsertCount.Load() != 0 {
		t.Errorf("expected no upserts, got %d", repo.upsertCount.Load())
	}
}

func TestManager_StartStop(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.Sources.NWSEnabled = false

	mgr := NewManager(cfg, newMockRepo(), nil, observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	cancel()
	mgr.Stop()
}

func TestManager_ConcurrentSubmit(t *testing.T) {
	cfg := testConfig("")
	cfg.Sources.NWSEnabled = false
	cfg.Worker = config.WorkerConfig{Count: 4, BufferSize: 100}

	repo := newMockRepo()
	mgr := NewManager(cfg, repo, nil, observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	batch := &pollBatch{}
	var wg sync.WaitGroup
	numGoroutines := 10
	numPerGoroutine := 50

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			for j := 0; j < numPerGoroutine; j++ {
				batch.wg.Add(1)
				rec := repository.Record{
					Alert: models.Alert{ID: fmt.Sprintf("test_%d_%d", goroutineID, j), Event: "Flood Watch"},
					Sent:  time.Now(),
				}
				if err := mgr.pool.Submit(ctx, ingestJob{record: rec, batch: batch}); err != nil {
					batch.wg.Done()
				}
			}
		}(i)
	}

	wg.Wait()
	batch.wg.Wait()

	cancel()
	mgr.Stop()

	expected := numGoroutines * numPerGoroutine
	if got := int(repo.upsertCount.Load()); got != expected {
		t.Errorf("expected %d alerts stored, got %d", expected, got)
	}
	if got := batch.changed.Load(); got != int64(expected) {
		t.Errorf("expected %d changes, got %d", expected, got)
	}
}

func TestManager_SkipsUnchangedSent(t *testing.T) {
	repo := newMockRepo()
	metrics := observability.NewMetricsForTesting()
	mgr := NewManager(testConfig(""), repo, nil, metrics)

	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := repository.Record{Alert: models.Alert{ID: "a", Event: "Tornado Watch"}, Sent: sent}

	run := func(r repository.Record) {
		batch := &pollBatch{}
		batch.wg.Add(1)
		if err := mgr.process(context.Background(), ingestJob{record: r, batch: batch}); err != nil {
			t.Fatalf("process failed: %v", err)
		}
		batch.wg.Wait()
	}

	run(rec)
	run(rec)
	rec.Sent = sent.Add(time.Minute)
	run(rec)

	if got := repo.upsertCount.Load(); got != 2 {
		t.Errorf("expected 2 upserts, got %d", got)
	}
	if got := testutil.ToFloat64(metrics.AlertsSkipped); got != 1 {
		t.Errorf("expected 1 skip, got %v", got)
	}
}

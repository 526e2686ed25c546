package sensors

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"wotkit-dashboard/internal/migrate"
	"wotkit-dashboard/internal/modules/sensors/types"
	"wotkit-dashboard/internal/modules/sensors/views"
	"wotkit-dashboard/internal/mqtt"

	_ "github.com/mattn/go-sqlite3"
)

type stubClient struct{}

func (stubClient) FetchReadings(context.Context, string, int) ([]types.Reading, error) {
	return []types.Reading{{ID: 1, Value: 3, TimestampISO: "2024-01-01T00:00:00Z"}}, nil
}

func (stubClient) FetchFields(context.Context, string) ([]types.Field, error) {
	return []types.Field{{Name: "lat", Value: 1.5}, {Name: "lng", Value: 2.5}}, nil
}

func (stubClient) SearchSensors(context.Context, string) ([]types.SensorSummary, error) {
	return []types.SensorSummary{{ID: "42", Name: "mule1", LongName: "Mule One"}}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	commands  mqtt.Commands
	err       error
}

func (p *fakePublisher) PublishView(kind string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, kind)
	return p.err
}

func (p *fakePublisher) SetCommands(cmds mqtt.Commands) { p.commands = cmds }

func (p *fakePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.published...)
}

func newFeature(t *testing.T) (*Feature, *http.ServeMux, context.CancelFunc) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := migrate.Run(db, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mux := http.NewServeMux()
	f := RegisterFeature(mux, db, stubClient{}, Options{Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(func() { cancel() })
	return f, mux, stop
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestFeature_selectRecordsHistory(t *testing.T) {
	f, mux, _ := newFeature(t)

	// Search first so the sensor name is known when the history is read.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("search status = %d", rec.Code)
	}
	waitFor(t, "sensor list", func() bool {
		inst, _ := f.Store.Get(views.KindSensorList)
		list, _ := inst.Data.(views.SensorList)
		return len(list.Sensors) > 0
	})

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sensors/42/select", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("select status = %d body = %s", rec.Code, rec.Body.String())
	}
	waitFor(t, "map view", func() bool {
		inst, _ := f.Store.Get(views.KindMap)
		return inst.SensorID == "42"
	})

	// Sensor names are stored off the dashboard loop, so poll the history.
	var history []types.HistoryEntry
	waitFor(t, "named history entry", func() bool {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/selections", nil))
		history = nil
		if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
			return false
		}
		return len(history) == 1 && history[0].SensorName == "mule1"
	})
	if history[0].SensorID != "42" {
		t.Fatalf("history = %+v; want one entry for 42 named mule1", history)
	}
}

func TestFeature_runStopsSensorWriter(t *testing.T) {
	f, mux, stop := newFeature(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("search status = %d", rec.Code)
	}
	waitFor(t, "sensor list", func() bool {
		inst, _ := f.Store.Get(views.KindSensorList)
		list, _ := inst.Data.(views.SensorList)
		return len(list.Sensors) > 0
	})

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		stop()
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFeature_attachMQTT(t *testing.T) {
	f, _, _ := newFeature(t)
	pub := &fakePublisher{err: mqtt.ErrNotConnected}
	f.AttachMQTT(pub, nil)

	if pub.commands.Select == nil || pub.commands.Search == nil {
		t.Fatal("commands not installed")
	}
	if err := pub.commands.Select(context.Background(), "42"); err != nil {
		t.Fatalf("select command: %v", err)
	}
	waitFor(t, "published views", func() bool {
		seen := map[string]bool{}
		for _, k := range pub.kinds() {
			seen[k] = true
		}
		return seen[string(views.KindTable)] && seen[string(views.KindMap)]
	})
}

func TestFeature_stoppedDashboard(t *testing.T) {
	_, mux, stop := newFeature(t)
	stop()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sensors/42/select", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("select after stop status = %d; want 503", rec.Code)
	}
}

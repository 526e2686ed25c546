package dashboard

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"wotkit-dashboard/internal/metrics"
	"wotkit-dashboard/internal/modules/sensors/types"
	"wotkit-dashboard/internal/modules/sensors/viewdata"
	"wotkit-dashboard/internal/wotkit"
)

type fakeClient struct {
	mu        sync.Mutex
	readings  map[string][]types.Reading
	fields    map[string][]types.Field
	sensors   []types.SensorSummary
	fieldsErr error
	searchErr error
	// gates block FetchReadings for a sensor until closed
	gates  map[string]chan struct{}
	limits []int
}

func (f *fakeClient) FetchReadings(ctx context.Context, sensorID string, limit int) ([]types.Reading, error) {
	f.mu.Lock()
	gate := f.gates[sensorID]
	f.limits = append(f.limits, limit)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readings[sensorID], nil
}

func (f *fakeClient) FetchFields(ctx context.Context, sensorID string) ([]types.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fieldsErr != nil {
		return nil, f.fieldsErr
	}
	return f.fields[sensorID], nil
}

func (f *fakeClient) SearchSensors(ctx context.Context, query string) ([]types.SensorSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sensors, f.searchErr
}

type recorder struct {
	mu         sync.Mutex
	selections []types.Selection
	tables     [][]viewdata.TableRow
	lines      [][]float64
	polars     [][]viewdata.Bucket
	maps       []viewdata.MapPoint
	trendlines [][]viewdata.Point
	lists      [][]types.SensorSummary
	statuses   []Status
}

func (r *recorder) RenderSelection(sel types.Selection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selections = append(r.selections, sel)
}

func (r *recorder) RenderTable(rows []viewdata.TableRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = append(r.tables, rows)
}

func (r *recorder) RenderLine(series []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, series)
}

func (r *recorder) RenderPolar(buckets []viewdata.Bucket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polars = append(r.polars, buckets)
}

func (r *recorder) RenderMap(point viewdata.MapPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maps = append(r.maps, point)
}

func (r *recorder) RenderTrendline(points []viewdata.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trendlines = append(r.trendlines, points)
}

func (r *recorder) RenderSensorList(sensors []types.SensorSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists = append(r.lists, sensors)
}

func (r *recorder) RenderStatus(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recorder) lastStatus() (Status, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Status{}, 0
	}
	return r.statuses[len(r.statuses)-1], len(r.statuses)
}

// waitIdle waits until at least n statuses were published and the last one
// has no pending requests.
func (r *recorder) waitIdle(t *testing.T, n int) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, count := r.lastStatus()
		if count >= n && st.Pending == 0 {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, count := r.lastStatus()
	t.Fatalf("controller not idle: %d statuses, last %+v", count, st)
	return Status{}
}

func startController(t *testing.T, client Client, r Renderer, m *metrics.Metrics) *Controller {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := New(client, r, Options{Timeout: time.Second, Metrics: m})
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v; want context.Canceled", err)
		}
	})
	return c
}

func scenarioClient() *fakeClient {
	return &fakeClient{
		readings: map[string][]types.Reading{
			"s1": {
				{ID: 1, Value: -2, TimestampISO: "t1"},
				{ID: 2, Value: 2, TimestampISO: "t2"},
				{ID: 3, Value: 2, TimestampISO: "t3"},
			},
		},
		fields: map[string][]types.Field{
			"s1": {{Name: "lat", Value: 49.26}, {Name: "lng", Value: -123.1}},
		},
	}
}

func TestSelect_publishesAllViews(t *testing.T) {
	client := scenarioClient()
	rec := &recorder{}
	c := startController(t, client, rec, nil)

	sel, err := c.Select(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Seq != 1 || sel.SensorID != "s1" {
		t.Errorf("selection = %+v; want seq 1 for s1", sel)
	}
	st := rec.waitIdle(t, 3)
	if st.Err != nil {
		t.Fatalf("status error = %v", st.Err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.selections) != 1 {
		t.Errorf("selections = %v; want 1", rec.selections)
	}
	if len(rec.maps) != 1 || rec.maps[0] != (viewdata.MapPoint{Lat: 49.26, Lng: -123.1, Label: DefaultMapLabel}) {
		t.Errorf("maps = %v", rec.maps)
	}
	if len(rec.lines) != 1 || !slices.Equal(rec.lines[0], []float64{2, 2, 2}) {
		t.Errorf("lines = %v; want [[2 2 2]]", rec.lines)
	}
	if len(rec.polars) != 1 || len(rec.polars[0]) != 2 || rec.polars[0][1].Magnitude != 2 {
		t.Errorf("polars = %v", rec.polars)
	}
	if len(rec.trendlines) != 1 || !slices.Equal(rec.trendlines[0], []viewdata.Point{{X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2}}) {
		t.Errorf("trendlines = %v", rec.trendlines)
	}
	if len(rec.tables) != 1 || len(rec.tables[0]) != 3 || rec.tables[0][0].Value != -2 {
		t.Errorf("tables = %v", rec.tables)
	}
	if rec.statuses[0].Pending != 2 {
		t.Errorf("first status pending = %d; want 2", rec.statuses[0].Pending)
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	if !slices.Equal(client.limits, []int{wotkit.DefaultReadingsLimit}) {
		t.Errorf("limits = %v; want [10]", client.limits)
	}
}

func TestSelect_discardsStaleResponses(t *testing.T) {
	client := scenarioClient()
	client.readings["s2"] = []types.Reading{{ID: 9, Value: 7, TimestampISO: "t9"}}
	client.fields["s2"] = []types.Field{{Name: "lat", Value: 1.0}, {Name: "lng", Value: 2.0}}
	gate := make(chan struct{})
	client.gates = map[string]chan struct{}{"s1": gate}

	m := metrics.New(prometheus.NewRegistry())
	rec := &recorder{}
	c := startController(t, client, rec, m)

	if _, err := c.Select(context.Background(), "s1"); err != nil {
		t.Fatalf("Select(s1): %v", err)
	}
	if _, err := c.Select(context.Background(), "s2"); err != nil {
		t.Fatalf("Select(s2): %v", err)
	}
	// s1 fields, s2 fields and s2 readings complete; s1 readings still blocked.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec.mu.Lock()
		n := len(rec.tables)
		rec.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("s2 readings never rendered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(gate)
	rec.waitIdle(t, 6)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.tables) != 1 || rec.tables[0][0].ID != 9 {
		t.Errorf("tables = %v; want only the s2 table", rec.tables)
	}
	if n := len(rec.maps); n == 0 || rec.maps[n-1].Lat != 1 {
		t.Errorf("maps = %v; want the s2 position last", rec.maps)
	}
	if got := testutil.ToFloat64(m.StaleCounter(wotkit.OpFetchReadings)); got != 1 {
		t.Errorf("stale fetch_readings = %v; want 1", got)
	}
	if c.CurrentSelection() != 2 {
		t.Errorf("CurrentSelection() = %d; want 2", c.CurrentSelection())
	}
}

func TestSelect_fieldsFailureKeepsReadingsViews(t *testing.T) {
	client := scenarioClient()
	client.fieldsErr = &wotkit.NetworkError{Op: wotkit.OpFetchFields, Target: "s1", StatusCode: 500}
	rec := &recorder{}
	c := startController(t, client, rec, nil)

	if _, err := c.Select(context.Background(), "s1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	st := rec.waitIdle(t, 3)

	var netErr *wotkit.NetworkError
	if !errors.As(st.Err, &netErr) {
		t.Fatalf("status error = %v; want *wotkit.NetworkError", st.Err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.maps) != 0 {
		t.Errorf("maps = %v; want none", rec.maps)
	}
	if len(rec.tables) != 1 {
		t.Errorf("tables = %d; want 1", len(rec.tables))
	}
}

func TestSelect_missingPositionIsMalformed(t *testing.T) {
	client := scenarioClient()
	client.fields["s1"] = []types.Field{{Name: "lat", Value: 49.26}}
	rec := &recorder{}
	c := startController(t, client, rec, nil)

	if _, err := c.Select(context.Background(), "s1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	st := rec.waitIdle(t, 3)

	var malformed *wotkit.MalformedResponseError
	if !errors.As(st.Err, &malformed) {
		t.Fatalf("status error = %v; want *wotkit.MalformedResponseError", st.Err)
	}
	if !errors.Is(st.Err, viewdata.ErrFieldNotFound) {
		t.Errorf("status error = %v; want to wrap ErrFieldNotFound", st.Err)
	}
}

func TestSearch_publishesList(t *testing.T) {
	client := &fakeClient{sensors: []types.SensorSummary{{ID: "1", LongName: "One"}, {ID: "2", LongName: "Two"}}}
	rec := &recorder{}
	c := startController(t, client, rec, nil)

	seq, err := c.Search(context.Background(), "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if seq != 1 {
		t.Errorf("seq = %d; want 1", seq)
	}
	rec.waitIdle(t, 2)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.lists) != 1 || len(rec.lists[0]) != 2 || rec.lists[0][1].LongName != "Two" {
		t.Errorf("lists = %v", rec.lists)
	}
}

func TestSearch_errorSurfacesAndNextActionClears(t *testing.T) {
	client := &fakeClient{searchErr: &wotkit.NetworkError{Op: wotkit.OpSearchSensors, Err: errors.New("refused")}}
	rec := &recorder{}
	c := startController(t, client, rec, nil)

	if _, err := c.Search(context.Background(), "x"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if st := rec.waitIdle(t, 2); st.Err == nil {
		t.Fatal("status error = nil; want search failure")
	}

	client.mu.Lock()
	client.searchErr = nil
	client.mu.Unlock()
	if _, err := c.Search(context.Background(), "y"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if st := rec.waitIdle(t, 4); st.Err != nil {
		t.Errorf("status error = %v; want cleared", st.Err)
	}
}

func TestController_stopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(&fakeClient{}, &recorder{}, Options{})
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	<-done

	if _, err := c.Select(context.Background(), "s1"); !errors.Is(err, ErrStopped) {
		t.Errorf("Select after stop err = %v; want ErrStopped", err)
	}
	if _, err := c.Search(context.Background(), "q"); !errors.Is(err, ErrStopped) {
		t.Errorf("Search after stop err = %v; want ErrStopped", err)
	}
}

// fillQueue occupies every free slot of the event queue of a controller
// whose Run loop has not started yet.
func fillQueue(c *Controller) {
	for {
		select {
		case c.events <- func() {}:
		default:
			return
		}
	}
}

func TestSelect_failedPostKeepsCurrentSelection(t *testing.T) {
	client := scenarioClient()
	gate := make(chan struct{})
	client.gates = map[string]chan struct{}{"s1": gate}
	rec := &recorder{}
	c := New(client, rec, Options{Timeout: time.Second})

	sel, err := c.Select(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Select(s1): %v", err)
	}
	fillQueue(c)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Select(cancelled, "s2"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Select(s2) err = %v; want context.Canceled", err)
	}
	if _, err := c.Search(cancelled, "q"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Search err = %v; want context.Canceled", err)
	}
	if got := c.CurrentSelection(); got != sel.Seq {
		t.Fatalf("CurrentSelection() = %d; want %d", got, sel.Seq)
	}
	if got := c.searchSeq.Load(); got != 0 {
		t.Errorf("search seq = %d; want 0 after failed search", got)
	}

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		stop()
		<-done
	})
	close(gate)

	rec.waitIdle(t, 3)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.tables) != 1 || len(rec.lines) != 1 || len(rec.maps) != 1 {
		t.Errorf("tables=%d lines=%d maps=%d; want the s1 views rendered", len(rec.tables), len(rec.lines), len(rec.maps))
	}
}

func TestSelect_newerSelectionWinsOverRelease(t *testing.T) {
	var seq atomic.Uint64
	seq.Store(3)
	release(&seq, 2)
	if got := seq.Load(); got != 3 {
		t.Errorf("seq = %d; want 3 kept", got)
	}
	release(&seq, 3)
	if got := seq.Load(); got != 2 {
		t.Errorf("seq = %d; want 2 after release", got)
	}
}

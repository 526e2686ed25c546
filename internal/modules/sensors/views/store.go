package views

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"wotkit-dashboard/internal/metrics"
	"wotkit-dashboard/internal/modules/sensors/dashboard"
	"wotkit-dashboard/internal/modules/sensors/types"
	"wotkit-dashboard/internal/modules/sensors/viewdata"
)

type Kind string

const (
	KindTable      Kind = "table"
	KindLine       Kind = "line"
	KindPolar      Kind = "polar"
	KindMap        Kind = "map"
	KindTrendline  Kind = "trendline"
	KindSensorList Kind = "sensor-list"
)

var Kinds = []Kind{KindTable, KindLine, KindPolar, KindMap, KindTrendline, KindSensorList}

func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

const (
	lineLabel         = "Data Points"
	polarHighlight    = "#999"
	mapZoomLevel      = 12
	trendlineXColumn  = "Data Point"
	trendlineYColumn  = "Value"
	placeholderLat    = 49.2662904
	placeholderLng    = -123.0985734
	placeholderLabel  = "Sensor"
	placeholderSample = 1.0
	// The empty placeholder line still reserves this many x-axis slots.
	placeholderLineSlots = 10
)

type LineChart struct {
	Label      string    `json:"label"`
	Labels     []string  `json:"labels"`
	Values     []float64 `json:"values"`
	PointColor string    `json:"pointColor"`
}

type PolarSegment struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Color     string  `json:"color"`
	Highlight string  `json:"highlight"`
}

type PolarChart struct {
	Segments []PolarSegment `json:"segments"`
}

type MapView struct {
	viewdata.MapPoint
	ZoomLevel int `json:"zoomLevel"`
}

type Trendline struct {
	Columns [2]string        `json:"columns"`
	Points  []viewdata.Point `json:"points"`
}

type Table struct {
	Rows []viewdata.TableRow `json:"rows"`
}

type SensorList struct {
	Sensors []types.SensorSummary `json:"sensors"`
}

// Instance is the live state of one view. Data is never modified after the
// instance is installed; a new publication replaces the whole instance.
type Instance struct {
	Kind         Kind      `json:"kind"`
	Version      uint64    `json:"version"`
	SelectionSeq uint64    `json:"selectionSeq"`
	SensorID     string    `json:"sensorId,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Data         any       `json:"data"`
}

type StatusView struct {
	Pending int    `json:"pending"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

type Snapshot struct {
	Selection *types.Selection  `json:"selection,omitempty"`
	Status    StatusView        `json:"status"`
	Views     map[Kind]Instance `json:"views"`
}

// Listener is called after an instance has been replaced, outside the store
// lock, on the goroutine that published it.
type Listener func(Instance)

type StoreOptions struct {
	Metrics *metrics.Metrics
	Now     func() time.Time
	// Color returns a display color for a chart element. Defaults to a random
	// #RRGGBB color.
	Color func() string
}

// Store owns at most one live instance of each view kind and implements
// dashboard.Renderer.
type Store struct {
	mu        sync.RWMutex
	live      map[Kind]Instance
	selection *types.Selection
	status    StatusView
	version   uint64
	listeners []Listener

	metrics *metrics.Metrics
	now     func() time.Time
	color   func() string
}

var _ dashboard.Renderer = (*Store)(nil)

// NewStore returns a store showing the placeholder views drawn before any
// sensor is selected.
func NewStore(opts StoreOptions) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Color == nil {
		opts.Color = RandomColor
	}
	s := &Store{
		live:    make(map[Kind]Instance, len(Kinds)),
		metrics: opts.Metrics,
		now:     opts.Now,
		color:   opts.Color,
	}
	s.install(KindPolar, PolarChart{Segments: []PolarSegment{}})
	line := s.lineChart([]float64{})
	line.Labels = make([]string, placeholderLineSlots)
	s.install(KindLine, line)
	s.install(KindMap, MapView{
		MapPoint:  viewdata.MapPoint{Lat: placeholderLat, Lng: placeholderLng, Label: placeholderLabel},
		ZoomLevel: mapZoomLevel,
	})
	s.install(KindTrendline, trendline([]viewdata.Point{{X: 0, Y: placeholderSample}}))
	s.install(KindTable, Table{Rows: []viewdata.TableRow{}})
	s.install(KindSensorList, SensorList{Sensors: []types.SensorSummary{}})
	return s
}

// Subscribe registers l for every later replacement. Listeners run in order on
// the goroutine calling Replace, the dashboard loop in production, and must
// not block.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Replace destroys the live instance of kind, if any, and installs a new one
// holding data.
func (s *Store) Replace(kind Kind, data any) Instance {
	s.mu.Lock()
	inst := s.installLocked(kind, data)
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	s.metrics.ViewReplaced(string(kind))
	for _, l := range listeners {
		l(inst)
	}
	return inst
}

func (s *Store) Get(kind Kind) (Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.live[kind]
	return inst, ok
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Status: s.status,
		Views:  make(map[Kind]Instance, len(s.live)),
	}
	if s.selection != nil {
		sel := *s.selection
		snap.Selection = &sel
	}
	for k, v := range s.live {
		snap.Views[k] = v
	}
	return snap
}

func (s *Store) RenderSelection(sel types.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = &sel
}

func (s *Store) RenderTable(rows []viewdata.TableRow) {
	s.Replace(KindTable, Table{Rows: rows})
}

func (s *Store) RenderLine(series []float64) {
	s.Replace(KindLine, s.lineChart(series))
}

func (s *Store) RenderPolar(buckets []viewdata.Bucket) {
	segments := make([]PolarSegment, len(buckets))
	for i, b := range buckets {
		segments[i] = PolarSegment{
			Label:     b.Label,
			Value:     b.Magnitude,
			Color:     s.color(),
			Highlight: polarHighlight,
		}
	}
	s.Replace(KindPolar, PolarChart{Segments: segments})
}

func (s *Store) RenderMap(point viewdata.MapPoint) {
	s.Replace(KindMap, MapView{MapPoint: point, ZoomLevel: mapZoomLevel})
}

func (s *Store) RenderTrendline(points []viewdata.Point) {
	s.Replace(KindTrendline, trendline(points))
}

func (s *Store) RenderSensorList(sensors []types.SensorSummary) {
	s.Replace(KindSensorList, SensorList{Sensors: sensors})
}

func (s *Store) RenderStatus(status dashboard.Status) {
	v := StatusView{Pending: status.Pending, Loading: status.Loading()}
	if status.Err != nil {
		v.Error = status.Err.Error()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = v
}

func (s *Store) install(kind Kind, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installLocked(kind, data)
}

func (s *Store) installLocked(kind Kind, data any) Instance {
	s.version++
	inst := Instance{
		Kind:      kind,
		Version:   s.version,
		UpdatedAt: s.now().UTC(),
		Data:      data,
	}
	// the sensor list is not tied to a selection
	if s.selection != nil && kind != KindSensorList {
		inst.SelectionSeq = s.selection.Seq
		inst.SensorID = s.selection.SensorID
	}
	s.live[kind] = inst
	return inst
}

func (s *Store) lineChart(series []float64) LineChart {
	return LineChart{
		Label:      lineLabel,
		Labels:     make([]string, len(series)),
		Values:     series,
		PointColor: s.color(),
	}
}

func trendline(points []viewdata.Point) Trendline {
	return Trendline{Columns: [2]string{trendlineXColumn, trendlineYColumn}, Points: points}
}

func RandomColor() string {
	return fmt.Sprintf("#%06X", rand.IntN(1<<24))
}

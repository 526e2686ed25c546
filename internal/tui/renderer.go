// Package tui is a terminal front end for the sensor dashboard. Renderer feeds
// the dashboard's view updates into a bubbletea program as messages.
package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"wotkit-dashboard/internal/modules/sensors/dashboard"
	"wotkit-dashboard/internal/modules/sensors/types"
	"wotkit-dashboard/internal/modules/sensors/viewdata"
)

type (
	selectionMsg types.Selection
	tableMsg     []viewdata.TableRow
	lineMsg      []float64
	polarMsg     []viewdata.Bucket
	mapMsg       viewdata.MapPoint
	trendlineMsg []viewdata.Point
	sensorsMsg   []types.SensorSummary
	statusMsg    dashboard.Status
	actionErrMsg struct{ err error }
)

var _ dashboard.Renderer = (*Renderer)(nil)

// Renderer forwards view updates to a program. Updates sent before Attach
// are dropped.
type Renderer struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func NewRenderer() *Renderer { return &Renderer{} }

// Attach sets the message sink, normally (*tea.Program).Send.
func (r *Renderer) Attach(send func(tea.Msg)) {
	r.mu.Lock()
	r.send = send
	r.mu.Unlock()
}

func (r *Renderer) emit(msg tea.Msg) {
	r.mu.Lock()
	send := r.send
	r.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

func (r *Renderer) RenderSelection(sel types.Selection)     { r.emit(selectionMsg(sel)) }
func (r *Renderer) RenderTable(rows []viewdata.TableRow)    { r.emit(tableMsg(rows)) }
func (r *Renderer) RenderLine(series []float64)             { r.emit(lineMsg(series)) }
func (r *Renderer) RenderPolar(buckets []viewdata.Bucket)   { r.emit(polarMsg(buckets)) }
func (r *Renderer) RenderMap(point viewdata.MapPoint)       { r.emit(mapMsg(point)) }
func (r *Renderer) RenderTrendline(points []viewdata.Point) { r.emit(trendlineMsg(points)) }
func (r *Renderer) RenderStatus(status dashboard.Status)    { r.emit(statusMsg(status)) }

func (r *Renderer) RenderSensorList(sensors []types.SensorSummary) {
	r.emit(sensorsMsg(sensors))
}
